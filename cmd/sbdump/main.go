package main

import (
	"fmt"
	"os"

	"stackbad/pkg/backend/irtext"
	"stackbad/pkg/compiler"
	"stackbad/pkg/utils"

	"github.com/davecgh/go-spew/spew"
)

// testSource declares and defines `f`, which returns 7.
const testSource = `stack bad # header
stack baaad # decl ext i32 f
ssssssstttttttack bad # "f"
staack bad # def f
ssssssstttttttack bad # "f"
stack baaaaaaaad # ret
staaaaaaaaccck baaaaaaad # const i32 7
`

func main() {
	src := testSource
	name := "test"
	if len(os.Args) > 1 {
		fullPath, _, err := utils.GetPathInfo(os.Args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, "path error:", err)
			os.Exit(1)
		}
		data, err := os.ReadFile(fullPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read error:", err)
			os.Exit(1)
		}
		src = string(data)
		name = fullPath
	}

	// Lex
	words, err := compiler.Lex(src)
	if err != nil {
		fmt.Fprintln(os.Stderr, compiler.Snippet(err, name, src, false))
		os.Exit(1)
	}

	fmt.Printf("Words (%d)\n", len(words))
	for _, w := range words {
		fmt.Println(" ", w)
	}
	fmt.Println()

	// Pair
	records, err := compiler.Pair(words)
	if err != nil {
		fmt.Fprintln(os.Stderr, compiler.Snippet(err, name, src, false))
		os.Exit(1)
	}

	fmt.Printf("Records (%d)\n", len(records))
	for _, r := range records {
		fmt.Println(" ", r)
	}
	fmt.Println()

	// Parse
	syms := compiler.NewSymbolTable()
	items, err := compiler.NewParser(compiler.NewRecordSource(records), compiler.WithSymbolTable(syms)).Parse()
	if err != nil {
		fmt.Fprintln(os.Stderr, compiler.Snippet(err, name, src, false))
		os.Exit(1)
	}

	fmt.Println("AST")
	for _, item := range items {
		fmt.Println(" ", item)
	}
	fmt.Println()
	spew.Config.DisablePointerAddresses = true
	spew.Dump(items)
	fmt.Println()
	fmt.Print(syms)
	fmt.Println()

	// code Generation
	mod := irtext.New(name)
	if err := compiler.Generate(items, mod, nil); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Println("Generated IR")
	fmt.Print(mod)
}
