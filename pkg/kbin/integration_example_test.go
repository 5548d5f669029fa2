package kbin_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/twinfer/kbinxml/pkg/kbin"
	"github.com/twinfer/kbinxml/pkg/kbinxml"
)

// Example_integration demonstrates a complete workflow using the kbin API
func Example_integration() {
	// Create a temporary directory for our test files
	tmpDir, err := os.MkdirTemp("", "kbin-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	// Author a document as XML
	xmlContent := `<?xml version="1.0" encoding="UTF-8"?>
<message version="1">
  <flags __type="u8">3</flags>
  <body __type="string">Hello KBin!</body>
  <pos __type="3s16">1 -2 3</pos>
  <tags __type="u16" __count="2">10 20</tags>
</message>
`

	// Step 1: Encode to a KBin file
	binary, err := kbin.FromXML([]byte(xmlContent))
	if err != nil {
		log.Fatal(err)
	}
	binPath := filepath.Join(tmpDir, "message.bin")
	if err := os.WriteFile(binPath, binary, 0644); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("KBin header: %v\n", kbinxml.IsKBin(binary))

	// Step 2: Read it back and convert to JSON
	data, err := os.ReadFile(binPath)
	if err != nil {
		log.Fatal(err)
	}
	jsonData, err := kbin.ToJSON(data)
	if err != nil {
		log.Fatal(err)
	}

	var doc struct {
		Encoding string `json:"encoding"`
		Root     struct {
			Name     string `json:"name"`
			Children []struct {
				Name string `json:"name"`
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"children"`
		} `json:"root"`
	}
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Root: %s (%s)\n", doc.Root.Name, doc.Encoding)
	for _, c := range doc.Root.Children {
		fmt.Printf("  %s %s = %s\n", c.Name, c.Type, c.Text)
	}

	// Step 3: Modify through the tree and re-encode uncompressed
	codec := kbin.NewCodec(kbin.WithCompression(kbinxml.Uncompressed))
	tree, err := codec.Decode(context.Background(), data)
	if err != nil {
		log.Fatal(err)
	}
	tree.Root().Child("body").Text = "Modified"

	modified, err := codec.Encode(context.Background(), tree)
	if err != nil {
		log.Fatal(err)
	}

	// Step 4: Select from the modified buffer
	matches, err := codec.Select(context.Background(), modified, `type_name == "string"`)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Modified body: %s\n", matches[0].Text)
	fmt.Printf("Uncompressed: %v\n", modified[1] == byte(kbinxml.Uncompressed))

	// Output:
	// KBin header: true
	// Root: message (UTF-8)
	//   flags u8 = 3
	//   body string = Hello KBin!
	//   pos 3s16 = 1 -2 3
	//   tags u16 = 10 20
	// Modified body: Modified
	// Uncompressed: true
}
