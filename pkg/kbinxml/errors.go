package kbinxml

import (
	"errors"

	"github.com/twinfer/kbinxml/pkg/sixbit"
)

// Failures are wrapped with context; match them with errors.Is.
var (
	ErrMalformedHeader = errors.New("malformed header")
	ErrStructural      = errors.New("structural error")
	ErrUnknownType     = errors.New("unknown node type")
	ErrUnknownTypeName = errors.New("unknown type name")
	ErrMalformedScalar = errors.New("malformed scalar")
	ErrTextEncoding    = errors.New("text not representable in encoding")
	ErrInputTooLarge   = errors.New("input exceeds size limit")

	ErrInvalidCharacter     = sixbit.ErrInvalidCharacter
	ErrNameTooLong          = sixbit.ErrNameTooLong
	ErrUnexpectedEndOfInput = sixbit.ErrUnexpectedEndOfInput
)
