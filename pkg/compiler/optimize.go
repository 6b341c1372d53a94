package compiler

// Prune removes Internal functions (declaration and definition) that cannot
// be reached from the body of any External function. External functions are
// always kept since they are visible to the linker.
func Prune(items []Item) []Item {
	// 1. Map declarations and definitions by name
	decls := make(map[string]*FunctionDecl)
	defs := make(map[string]*FunctionDef)
	for _, item := range items {
		switch it := item.(type) {
		case *FunctionDecl:
			decls[it.Name] = it
		case *FunctionDef:
			defs[it.Name] = it
		}
	}

	reachable := make(map[string]bool)
	var worklist []string

	addReachable := func(name string) {
		if !reachable[name] {
			reachable[name] = true
			worklist = append(worklist, name)
		}
	}

	// 2. Roots: every External function
	for name, decl := range decls {
		if decl.Linkage == External {
			addReachable(name)
		}
	}

	// 3. Traverse the worklist to find all transitively reachable functions
	for len(worklist) > 0 {
		curr := worklist[0]
		worklist = worklist[1:]

		def, ok := defs[curr]
		if !ok {
			continue // declared only, resolved by the linker
		}
		calls := make(map[string]bool)
		findCalls(def.Body, calls)
		for call := range calls {
			addReachable(call)
		}
	}

	// 4. Rebuild the item list in order, dropping unreachable functions
	var pruned []Item
	for _, item := range items {
		switch it := item.(type) {
		case *FunctionDecl:
			if !reachable[it.Name] {
				continue
			}
		case *FunctionDef:
			if !reachable[it.Name] {
				continue
			}
		}
		pruned = append(pruned, item)
	}
	return pruned
}

// findCalls recursively collects the names of functions invoked by e.
func findCalls(e Expr, calls map[string]bool) {
	switch n := e.(type) {
	case *InvokeExpr:
		calls[n.Name] = true
		for _, arg := range n.Args {
			findCalls(arg, calls)
		}
	case *BinaryExpr:
		findCalls(n.Left, calls)
		findCalls(n.Right, calls)
	case *UnaryExpr:
		findCalls(n.Operand, calls)
	case *BlockExpr:
		for _, child := range n.Exprs {
			findCalls(child, calls)
		}
	case *AssignmentExpr:
		findCalls(n.Value, calls)
	case *ReturnExpr:
		findCalls(n.Value, calls)
	case *LocalExpr, *ConstantExpr, *StringLitExpr:
		// leaves
	}
}
