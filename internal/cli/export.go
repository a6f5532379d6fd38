package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/LeJamon/goPresale/internal/core/types"
	"github.com/LeJamon/goPresale/internal/storage/archive"
	"github.com/LeJamon/goPresale/internal/storage/relationaldb"
)

const exportPage = 1000

var (
	exportOut   string
	exportLevel int
	exportPlain bool
)

var settlementArchiveCmd = &cobra.Command{
	Use:   "settlements",
	Short: "Export and inspect settlement archives",
}

var settlementExportCmd = &cobra.Command{
	Use:   "export <round>",
	Short: "Write a round's settlements to a JSON lines file, LZ4 compressed unless --plain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := parseIndex(args[0])
		if err != nil {
			return err
		}
		path := exportOut
		if path == "" {
			ext := archive.Extension
			if exportPlain {
				ext = archive.PlainExtension
			}
			path = fmt.Sprintf("round-%d%s", index, ext)
		}

		n, err := openNode(true)
		if err != nil {
			return err
		}
		defer n.Close()
		engine, err := n.provider.Engine()
		if err != nil {
			return err
		}

		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		buf := bufio.NewWriter(f)
		var w *archive.Writer
		if exportPlain {
			w = archive.NewPlainWriter(buf)
		} else {
			w = archive.NewWriter(buf, exportLevel)
		}

		var after uint64
		for {
			rows, err := engine.Settlements(cmd.Context(), relationaldb.SettlementQuery{
				RoundIndex: index,
				AfterSeq:   after,
				Limit:      exportPage,
			})
			if err != nil {
				return err
			}
			for i := range rows {
				if err := w.Write(&rows[i]); err != nil {
					return err
				}
			}
			if len(rows) < exportPage {
				break
			}
			after = rows[len(rows)-1].Sequence
		}

		if err := w.Close(); err != nil {
			return err
		}
		if err := buf.Flush(); err != nil {
			return err
		}
		n.logger.Info("settlements exported", zap.Uint64("round", index), zap.Int("count", w.Count()), zap.String("path", path))
		fmt.Fprintf(cmd.OutOrStdout(), "exported %d settlements of round %d to %s\n", w.Count(), index, path)
		return nil
	},
}

var settlementInspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Summarize a settlement archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		r := archive.NewReader(f)
		var (
			count   int
			raised  types.USD
			first   uint64
			last    uint64
			gaps    int
			summary = map[string]interface{}{}
		)
		for {
			row, err := r.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return err
			}
			if count == 0 {
				first = row.Sequence
				summary["round"] = row.RoundIndex
			} else if row.Sequence != last+1 {
				gaps++
			}
			last = row.Sequence
			var ok bool
			if raised, ok = raised.Add(row.USDValue); !ok {
				return fmt.Errorf("settlement %s: raised total overflows", row.ID)
			}
			count++
		}

		summary["count"] = count
		summary["first_sequence"] = first
		summary["last_sequence"] = last
		summary["sequence_gaps"] = gaps
		summary["raised_usd"] = raised
		return printJSON(cmd.OutOrStdout(), summary)
	},
}

func init() {
	settlementExportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default round-<n>"+archive.Extension+")")
	settlementExportCmd.Flags().IntVar(&exportLevel, "level", 0, "LZ4 compression level, 0 for fast")
	settlementExportCmd.Flags().BoolVar(&exportPlain, "plain", false, "write uncompressed JSON lines")
	settlementArchiveCmd.AddCommand(settlementExportCmd, settlementInspectCmd)
	rootCmd.AddCommand(settlementArchiveCmd)
}
