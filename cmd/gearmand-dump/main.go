// Command gearmand-dump is a read-only offline tool that dumps every
// background job persisted in a bolt queue file as YAML, for operators
// inspecting a stopped gearmand's durable state (a supplemented feature:
// upstream gearmand ships no equivalent, but persistent-queue adapters
// that can't be introspected any other way are common enough in the
// corpus — see original_source/ for the queue formats this replaces).
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
	"gopkg.in/yaml.v3"

	"github.com/spf13/cobra"
)

var bucketJobs = []byte("jobs")

// jobRecord mirrors boltqueue's on-disk JSON shape; kept as a separate
// type here so this tool has no import-time dependency on an unexported
// internal of pkg/queue/boltqueue.
type jobRecord struct {
	Handle   string `json:"handle" yaml:"handle"`
	Function string `json:"function" yaml:"function"`
	Unique   string `json:"unique" yaml:"unique"`
	Data     []byte `json:"data" yaml:"data"`
	Priority int    `json:"priority" yaml:"priority"`
	Epoch    int64  `json:"epoch" yaml:"epoch"`
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gearmand-dump",
	Short: "Dump a bolt queue file's persisted background jobs as YAML",
	RunE:  run,
}

func init() {
	rootCmd.Flags().String("data-dir", ".", "Directory containing gearmand.db")
	rootCmd.Flags().String("output", "", "Write YAML to this file instead of stdout")
}

func run(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	output, _ := cmd.Flags().GetString("output")

	dbPath := filepath.Join(dataDir, "gearmand.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("open %s read-only: %w", dbPath, err)
	}
	defer db.Close()

	var records []jobRecord
	err = db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var rec jobRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode record: %w", err)
			}
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(map[string]any{"jobs": records})
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}

	if output == "" {
		_, err = os.Stdout.Write(out)
		return err
	}
	return os.WriteFile(output, out, 0644)
}
