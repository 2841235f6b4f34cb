// Command f3inspect dumps the postscript and footer of an F3 file without
// decoding any column data, for debugging layouts and verifying writers.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/f3-format/f3"
	"github.com/f3-format/f3/footer"
	"github.com/f3-format/f3/positional"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "f3inspect",
		Short:   "Inspect the postscript and footer of an F3 file",
		Version: f3.ModuleVersion,
	}
	root.AddCommand(newDumpCmd())
	return root
}

func newDumpCmd() *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "dump <path>",
		Short: "Print the decoded postscript and footer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(cmd, args[0], raw)
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "also print raw footer bytes as hex")
	return cmd
}

func runDump(cmd *cobra.Command, path string, raw bool) error {
	ctx := context.Background()

	r, err := positional.OpenFile(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer r.Close()

	size, err := r.Size(ctx)
	if err != nil {
		return err
	}
	if size <= footer.POSTSCRIPT_SIZE {
		return fmt.Errorf("%s is too small to hold a postscript (%d bytes)", path, size)
	}

	psBuf := make([]byte, footer.POSTSCRIPT_SIZE)
	if err := r.ReadExactAt(ctx, psBuf, size-footer.POSTSCRIPT_SIZE); err != nil {
		return err
	}
	ps, err := footer.DecodePostscript(psBuf)
	if err != nil {
		return fmt.Errorf("decode postscript: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "file size:      %d bytes\n", size)
	fmt.Fprintf(out, "format version: %d\n", ps.FormatVersion)
	fmt.Fprintf(out, "footer size:    %d bytes\n", ps.FooterSize)
	fmt.Fprintf(out, "metadata size:  %d bytes\n", ps.MetadataSize)
	fmt.Fprintf(out, "checksum type:  %v\n", ps.ChecksumType)
	fmt.Fprintf(out, "data checksum:  %016x\n", ps.DataChecksum)

	footerBuf := make([]byte, ps.FooterSize)
	footerOffset := size - footer.POSTSCRIPT_SIZE - uint64(ps.FooterSize)
	if err := r.ReadExactAt(ctx, footerBuf, footerOffset); err != nil {
		return err
	}
	ft, err := footer.DecodeFooter(footerBuf)
	if err != nil {
		return fmt.Errorf("decode footer: %w", err)
	}

	leaves := footer.LeafFields(ft.Schema.Fields)
	fmt.Fprintf(out, "\nschema (%d leaf columns):\n", len(leaves))
	for i, f := range leaves {
		fmt.Fprintf(out, "  [%d] %s: %v (nullable=%v)\n", i, f.Name, f.Type, f.Nullable)
	}

	fmt.Fprintf(out, "\nrow groups: %d\n", len(ft.RowGroups.RowCounts))
	for i, count := range ft.RowGroups.RowCounts {
		fmt.Fprintf(out, "  [%d] rows=%d offset=%d size=%d\n", i, count, ft.RowGroups.Offsets[i], ft.RowGroups.Sizes[i])
	}

	if len(ft.SharedDict) > 0 {
		fmt.Fprintf(out, "\nshared dictionaries: %d\n", len(ft.SharedDict))
		for _, e := range ft.SharedDict {
			fmt.Fprintf(out, "  dict_id=%d decoder_id=%d offset=%d size=%d\n", e.DictionaryID, e.DecoderID, e.Pointer.Offset, e.Pointer.Size)
		}
	}

	if len(ft.OptionalSections) > 0 {
		fmt.Fprintf(out, "\noptional sections: %d\n", len(ft.OptionalSections))
		for _, s := range ft.OptionalSections {
			fmt.Fprintf(out, "  %s: offset=%d size=%d compression=%v\n", s.Name, s.Offset, s.Size, s.CompressionType)
		}
	}

	if raw {
		fmt.Fprintf(out, "\nraw footer bytes:\n% x\n", footerBuf)
	}

	return nil
}
