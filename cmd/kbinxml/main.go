package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/twinfer/kbinxml/pkg/kbin"
	"github.com/twinfer/kbinxml/pkg/kbinxml"
	"github.com/twinfer/kbinxml/pkg/tree"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp(os.Stdin, os.Stdout).Run(os.Args); err != nil {
		log.Fatalf("kbinxml: %v", err)
	}
}

func newApp(stdin io.Reader, stdout io.Writer) *cli.App {
	formatFlag := &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "text rendition: xml, json or yaml",
		Value:   "xml",
	}

	return &cli.App{
		Name:   "kbinxml",
		Usage:  "convert and query KBin binary XML files",
		Reader: stdin,
		Writer: stdout,
		Commands: []*cli.Command{
			{
				Name:      "decode",
				Usage:     "print a KBin file as text",
				ArgsUsage: "[file]",
				Flags: []cli.Flag{
					formatFlag,
					&cli.IntFlag{Name: "max-size", Usage: "reject larger input", Value: kbin.DefaultMaxInputSize},
				},
				Action: func(c *cli.Context) error {
					data, err := readInput(c)
					if err != nil {
						return err
					}
					opts := []kbin.Option{kbin.WithMaxInputSize(c.Int("max-size"))}

					var out []byte
					switch c.String("format") {
					case "xml":
						out, err = kbin.ToXML(data, opts...)
					case "json":
						out, err = kbin.ToJSON(data, opts...)
						if err == nil {
							out = append(out, '\n')
						}
					case "yaml":
						out, err = kbin.ToYAML(data, opts...)
					default:
						return fmt.Errorf("unknown format %q", c.String("format"))
					}
					if err != nil {
						return err
					}
					_, err = c.App.Writer.Write(out)
					return err
				},
			},
			{
				Name:      "encode",
				Usage:     "build a KBin file from text",
				ArgsUsage: "[file]",
				Flags: []cli.Flag{
					formatFlag,
					&cli.StringFlag{Name: "compression", Usage: "compressed or uncompressed (default: keep)"},
					&cli.StringFlag{Name: "encoding", Usage: "output text encoding (default: keep)"},
				},
				Action: func(c *cli.Context) error {
					data, err := readInput(c)
					if err != nil {
						return err
					}

					var opts []kbin.Option
					if s := c.String("compression"); s != "" {
						comp, err := kbinxml.ParseCompression(s)
						if err != nil {
							return err
						}
						opts = append(opts, kbin.WithCompression(comp))
					}
					if s := c.String("encoding"); s != "" {
						enc, err := kbinxml.ParseEncoding(s)
						if err != nil {
							return err
						}
						opts = append(opts, kbin.WithEncoding(enc))
					}

					var out []byte
					switch c.String("format") {
					case "xml":
						out, err = kbin.FromXML(data, opts...)
					case "json":
						out, err = kbin.FromJSON(data, opts...)
					case "yaml":
						out, err = kbin.FromYAML(data, opts...)
					default:
						return fmt.Errorf("unknown format %q", c.String("format"))
					}
					if err != nil {
						return err
					}
					_, err = c.App.Writer.Write(out)
					return err
				},
			},
			{
				Name:      "select",
				Usage:     "print the elements matching a CEL predicate",
				ArgsUsage: "[file]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "expr", Aliases: []string{"e"}, Usage: "CEL predicate", Required: true},
					&cli.BoolFlag{Name: "json", Usage: "print matches as JSON lines"},
				},
				Action: func(c *cli.Context) error {
					data, err := readInput(c)
					if err != nil {
						return err
					}
					matches, err := kbin.Select(data, c.String("expr"))
					if err != nil {
						return err
					}
					for _, e := range matches {
						if err := printMatch(c.App.Writer, e, c.Bool("json")); err != nil {
							return err
						}
					}
					return nil
				},
			},
		},
	}
}

// readInput reads the file named by the first argument, or stdin.
func readInput(c *cli.Context) ([]byte, error) {
	if c.NArg() == 0 || c.Args().First() == "-" {
		return io.ReadAll(c.App.Reader)
	}
	return os.ReadFile(c.Args().First())
}

func printMatch(w io.Writer, e *tree.Element, asJSON bool) error {
	if asJSON {
		s, err := tree.StructuredElement(e)
		if err != nil {
			return err
		}
		s["path"] = e.Path()
		line, err := json.Marshal(s)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", line)
		return err
	}

	var buf bytes.Buffer
	buf.WriteString(e.Path())
	if e.TypeName != "" {
		fmt.Fprintf(&buf, " (%s)", e.TypeName)
	}
	if e.Text != "" {
		fmt.Fprintf(&buf, " = %s", e.Text)
	}
	buf.WriteByte('\n')
	_, err := w.Write(buf.Bytes())
	return err
}
