// Command helix is a small CLI demonstrating the storage engine: opening a
// store, running the end-to-end scenarios from the traversal fabric's test
// suite against it, and dumping/validating configuration.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/helixdb/helix-core/pkg/codec"
	"github.com/helixdb/helix-core/pkg/config"
	"github.com/helixdb/helix-core/pkg/helixdb"
	"github.com/helixdb/helix-core/pkg/kv"
	"github.com/helixdb/helix-core/pkg/traversal"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "helix",
		Short: "HelixDB - an embedded graph, vector, and full-text storage engine",
		Long: `helix is a small CLI around the HelixDB storage core: a single
process, single-binary demonstration of the kv substrate, the graph/vector/
bm25 stores, the traversal fabric, and the worker pool that routes requests
to them.`,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("helix v%s\n", version)
		},
	})

	initCmd := &cobra.Command{
		Use:   "init [data-dir]",
		Short: "Create (or stamp) a store at data-dir",
		Args:  cobra.ExactArgs(1),
		RunE:  runInit,
	}
	rootCmd.AddCommand(initCmd)

	demoCmd := &cobra.Command{
		Use:   "demo [data-dir]",
		Short: "Run the end-to-end traversal scenarios against a store",
		Long: `demo opens a store (in-memory if data-dir is omitted) and runs
four end-to-end traversal scenarios: an empty type scan,
add-nodes-and-traverse, a secondary-index lookup, and BFS vs Dijkstra
shortest paths over a weighted fork.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runDemo,
	}
	rootCmd.AddCommand(demoCmd)

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration surface",
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Print the default configuration as YAML",
		RunE:  runConfigDump,
	})
	configCmd.AddCommand(&cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a YAML configuration file",
		Args:  cobra.ExactArgs(1),
		RunE:  runConfigValidate,
	})
	rootCmd.AddCommand(configCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	dataDir := args[0]
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	db, err := helixdb.Open(dataDir, config.Default())
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer db.Close()

	fmt.Printf("initialized store at %s\n", dataDir)
	return nil
}

func runConfigDump(cmd *cobra.Command, args []string) error {
	raw, err := config.DumpYAML(config.Default())
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(raw)
	return err
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadYAML(args[0])
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	fmt.Println("configuration is valid")
	return nil
}

func runDemo(cmd *cobra.Command, args []string) error {
	dataDir := ""
	if len(args) == 1 {
		dataDir = args[0]
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := helixdb.Open(dataDir, config.Default())
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer db.Close()

	ctx := context.Background()

	fmt.Println("1. empty graph, type scan:")
	if err := db.View(ctx, func(txn *kv.ReadTxn, arena *traversal.Arena) error {
		values, err := traversal.NFromType(txn, "Person").Count().Ok()
		if err != nil {
			return err
		}
		fmt.Printf("   n_from_type(\"Person\").count() = %d\n", values[0].Count)
		return nil
	}); err != nil {
		return err
	}

	var a, b [16]byte
	fmt.Println("2. add two nodes and an edge, traverse:")
	if err := db.Update(ctx, func(txn *kv.WriteTxn, arena *traversal.Arena) error {
		pmA := codec.NewPropertyMap()
		pmA.Set("name", codec.String("A"))
		createdA, err := traversal.AddN(txn, "Person", pmA, nil).Ok()
		if err != nil {
			return err
		}
		a = createdA[0].Node.ID

		pmB := codec.NewPropertyMap()
		pmB.Set("name", codec.String("B"))
		createdB, err := traversal.AddN(txn, "Person", pmB, nil).Ok()
		if err != nil {
			return err
		}
		b = createdB[0].Node.ID

		_, err = traversal.AddE(txn, "KNOWS", a, b, nil, true).Ok()
		return err
	}); err != nil {
		return err
	}
	if err := db.View(ctx, func(txn *kv.ReadTxn, arena *traversal.Arena) error {
		values, err := traversal.NFromID(txn, a).OutNode("KNOWS").Ok()
		if err != nil {
			return err
		}
		name, _ := values[0].Property("name")
		fmt.Printf("   n_from_id(a).out_node(\"KNOWS\") -> name=%s\n", name.Str())
		return nil
	}); err != nil {
		return err
	}

	fmt.Println("3. secondary-index lookup:")
	if err := db.Update(ctx, func(txn *kv.WriteTxn, arena *traversal.Arena) error {
		pm := codec.NewPropertyMap()
		pm.Set("gh_id", codec.F64(42))
		_, err := traversal.AddN(txn, "User", pm, []string{"gh_id"}).Ok()
		return err
	}); err != nil {
		return err
	}
	if err := db.View(ctx, func(txn *kv.ReadTxn, arena *traversal.Arena) error {
		values, err := traversal.NFromIndex(txn, "gh_id", codec.F64(42)).Ok()
		if err != nil {
			return err
		}
		fmt.Printf("   n_from_index(\"gh_id\", 42) found %d node(s)\n", len(values))
		return nil
	}); err != nil {
		return err
	}

	fmt.Println("4. shortest path, BFS vs Dijkstra:")
	var p1, p2, p3 [16]byte
	if err := db.Update(ctx, func(txn *kv.WriteTxn, arena *traversal.Arena) error {
		n1, err := traversal.AddN(txn, "stop", nil, nil).Ok()
		if err != nil {
			return err
		}
		n2, err := traversal.AddN(txn, "stop", nil, nil).Ok()
		if err != nil {
			return err
		}
		n3, err := traversal.AddN(txn, "stop", nil, nil).Ok()
		if err != nil {
			return err
		}
		p1, p2, p3 = n1[0].Node.ID, n2[0].Node.ID, n3[0].Node.ID

		cheap := codec.NewPropertyMap()
		cheap.Set("price", codec.F64(1))
		expensive := codec.NewPropertyMap()
		expensive.Set("price", codec.F64(10))
		if _, err := traversal.AddE(txn, "R", p1, p2, expensive, true).Ok(); err != nil {
			return err
		}
		_, err = traversal.AddE(txn, "R", p1, p3, cheap, true).Ok()
		if err != nil {
			return err
		}
		_, err = traversal.AddE(txn, "R", p3, p2, cheap, true).Ok()
		return err
	}); err != nil {
		return err
	}
	if err := db.View(ctx, func(txn *kv.ReadTxn, arena *traversal.Arena) error {
		bfs, err := traversal.NFromID(txn, p1).ShortestPath("R", &p1, &p2, traversal.AlgorithmBFS, "").Ok()
		if err != nil {
			return err
		}
		fmt.Printf("   BFS path length:      %d hops\n", len(bfs[0].Path.NodeIDs)-1)

		dij, err := traversal.NFromID(txn, p1).ShortestPath("R", &p1, &p2, traversal.AlgorithmDijkstra, "price").Ok()
		if err != nil {
			return err
		}
		fmt.Printf("   Dijkstra path length: %d hops (cheaper route)\n", len(dij[0].Path.NodeIDs)-1)
		return nil
	}); err != nil {
		return err
	}

	fmt.Println("done.")
	return nil
}
