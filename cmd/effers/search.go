package main

import (
	"github.com/spf13/cobra"

	"github.com/jward/effers"
)

var (
	flagEffect      string
	flagPackage     string
	flagPathPrefix  string
	flagPassthrough bool
	flagShadowed    bool
	flagLimit       int
	flagOffset      int
	flagSort        string
	flagOrder       string
)

var searchCmd = &cobra.Command{
	Use:   "search [pattern]",
	Short: "Search recorded programs by glob pattern",
	Long:  "Lists programs whose name matches a glob pattern (* matches any run of characters). Filters narrow the result to programs using an effect, in a package or under a path.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&flagEffect, "effect", "", "only programs with a layer for this interface")
	searchCmd.Flags().StringVar(&flagPackage, "package", "", "only programs in this package")
	searchCmd.Flags().StringVar(&flagPathPrefix, "path-prefix", "", "only programs in files under this path")
	searchCmd.Flags().BoolVar(&flagPassthrough, "passthrough", false, "only passthrough programs (false: only programs with effects)")
	searchCmd.Flags().BoolVar(&flagShadowed, "shadowed", false, "only programs with a shadowed operation")
	searchCmd.Flags().IntVar(&flagLimit, "limit", 50, "max results (max 500)")
	searchCmd.Flags().IntVar(&flagOffset, "offset", 0, "skip this many results")
	searchCmd.Flags().StringVar(&flagSort, "sort", "name", "sort by: name|file|effects|rewritten")
	searchCmd.Flags().StringVar(&flagOrder, "order", "asc", "sort order: asc|desc")
}

func runSearch(cmd *cobra.Command, args []string) error {
	engine, err := openEngine()
	if err != nil {
		return outputError("search", err)
	}
	defer engine.Close()

	pattern := ""
	if len(args) == 1 {
		pattern = args[0]
	}

	filter := effers.ProgramFilter{Shadowed: flagShadowed}
	if flagEffect != "" {
		filter.Effect = &flagEffect
	}
	if flagPackage != "" {
		filter.Package = &flagPackage
	}
	if flagPathPrefix != "" {
		filter.PathPrefix = &flagPathPrefix
	}
	if cmd.Flags().Changed("passthrough") {
		filter.Passthrough = &flagPassthrough
	}

	result, err := engine.Query().SearchPrograms(pattern, filter, buildSort(), buildPagination())
	if err != nil {
		return outputError("search", err)
	}

	out := make([]CLIProgram, 0, len(result.Items))
	for _, r := range result.Items {
		out = append(out, programResultToCLI(r))
	}
	return outputResult(CLIResult{
		Command:    "search",
		Results:    out,
		TotalCount: &result.TotalCount,
	})
}

// buildPagination creates a Pagination from CLI flags.
func buildPagination() effers.Pagination {
	return effers.Pagination{
		Limit:  flagLimit,
		Offset: flagOffset,
	}
}

// buildSort creates a Sort from CLI flags.
func buildSort() effers.Sort {
	var field effers.SortField
	switch flagSort {
	case "file":
		field = effers.SortByFile
	case "effects":
		field = effers.SortByEffects
	case "rewritten":
		field = effers.SortByRewritten
	default:
		field = effers.SortByName
	}

	var order effers.SortOrder
	switch flagOrder {
	case "desc":
		order = effers.Desc
	default:
		order = effers.Asc
	}

	return effers.Sort{Field: field, Order: order}
}

func programResultToCLI(r effers.ProgramResult) CLIProgram {
	out := toCLIProgram(&r.Program)
	out.Effects = r.Effects
	out.Shadowed = r.Shadowed
	return out
}
