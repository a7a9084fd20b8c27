// Command quarry inspects persisted DQL execution plans: it reconstructs a
// plan from its JSON form, checks graph linkage, and prints an explain-style
// overview. With a plan store it can also save and load plans by key.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ehollis/quarry-dql/dql/ast"
	"github.com/ehollis/quarry-dql/dql/plan"
	"github.com/ehollis/quarry-dql/dql/query"
	"github.com/ehollis/quarry-dql/dql/render"
	"github.com/ehollis/quarry-dql/dql/store"
)

func main() {
	var planFile string
	var dbPath string
	var save bool
	var loadKey string
	var showTable bool
	var noColor bool

	flag.StringVar(&planFile, "plan", "", "persisted plan JSON file to inspect")
	flag.StringVar(&dbPath, "db", "", "plan store path")
	flag.BoolVar(&save, "save", false, "store the plan in the plan store (requires -plan and -db)")
	flag.StringVar(&loadKey, "load", "", "load a plan from the plan store by key (requires -db)")
	flag.BoolVar(&showTable, "table", false, "print a per-node detail table")
	flag.BoolVar(&noColor, "no-color", false, "disable colorized output")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Inspect persisted DQL execution plans.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -plan plan.json                 # validate and show a plan\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -plan plan.json -table          # include the node table\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -plan plan.json -db plans -save # store it\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -db plans -load <key>           # show a stored plan\n", os.Args[0])
	}
	flag.Parse()

	var data []byte
	var err error

	switch {
	case planFile != "":
		data, err = os.ReadFile(planFile)
		if err != nil {
			log.Fatalf("Failed to read plan file: %v", err)
		}
	case loadKey != "":
		if dbPath == "" {
			log.Fatal("-load requires -db")
		}
		planStore, err := store.Open(dbPath)
		if err != nil {
			log.Fatalf("Failed to open plan store: %v", err)
		}
		var found bool
		data, found, err = planStore.Get(loadKey)
		closeErr := planStore.Close()
		if err != nil {
			log.Fatalf("Failed to load plan: %v", err)
		}
		if !found {
			log.Fatalf("No plan stored under key %s", loadKey)
		}
		if closeErr != nil {
			log.Fatalf("Failed to close plan store: %v", closeErr)
		}
	default:
		flag.Usage()
		os.Exit(1)
	}

	a := ast.New()
	cols := query.NewCollections()
	p, err := plan.UnmarshalPlan(data, a, cols)
	if err != nil {
		log.Fatalf("Failed to reconstruct plan: %v", err)
	}

	issues, err := p.CheckLinkage()
	if err != nil {
		log.Fatalf("Linkage check failed: %v", err)
	}
	for _, issue := range issues {
		fmt.Fprintf(os.Stderr, "linkage: %s\n", issue)
	}

	tree, err := render.Tree(p, !noColor)
	if err != nil {
		log.Fatalf("Failed to render plan: %v", err)
	}
	fmt.Print(tree)

	if rules := p.AppliedRules(); len(rules) > 0 {
		fmt.Printf("\nApplied rules: %v\n", rules)
	}
	if all := cols.All(); len(all) > 0 {
		fmt.Printf("Collections:")
		for _, c := range all {
			fmt.Printf(" %s(%s)", c.Name, c.Access)
		}
		fmt.Println()
	}

	if showTable {
		table, err := render.NodeTable(p)
		if err != nil {
			log.Fatalf("Failed to render node table: %v", err)
		}
		fmt.Println()
		fmt.Print(table)
	}

	if save {
		if dbPath == "" {
			log.Fatal("-save requires -db")
		}
		planStore, err := store.Open(dbPath)
		if err != nil {
			log.Fatalf("Failed to open plan store: %v", err)
		}
		defer planStore.Close()

		key := store.Hash(string(data))
		if err := planStore.Put(key, data); err != nil {
			log.Fatalf("Failed to store plan: %v", err)
		}
		fmt.Printf("\nStored plan under key %s\n", key)
	}
}
