package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/normware/internal/action"
	"github.com/roach88/normware/internal/dispatch"
	"github.com/roach88/normware/internal/ir"
	"github.com/roach88/normware/internal/journal"
	"github.com/roach88/normware/internal/normalizer"
	"github.com/roach88/normware/internal/schema"
)

// NormalizeResult is the outcome of dispatching one action.
type NormalizeResult struct {
	Type       string    `json:"type"`
	Normalized bool      `json:"normalized"`
	Entities   int       `json:"entities"`
	Journaled  bool      `json:"journaled"`
	Action     ir.Object `json:"action"`
}

// NewNormalizeCommand creates the normalize command.
func NewNormalizeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "normalize <action.json|->",
		Short: "Dispatch one action through the normalizer",
		Long: `Dispatch a JSON action document through the normalizing middleware and
print the action that reaches the reducer.

The document has the shape {"type", "payload", "error", "meta"}. When
meta.schema names a schema from --schemas and the action carries a payload
and is not an error, the payload is replaced by {"entities", "result"} and
meta.schema is removed. Otherwise the action is printed unchanged.

With --journal, the forwarded action is also appended to the journal.

Examples:
  normware normalize --schemas ./schemas action.json
  echo '{"type":"PING"}' | normware normalize --schemas ./schemas -
  normware normalize --schemas ./schemas --journal actions.db action.json --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNormalize(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runNormalize(opts *RootOptions, input string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	logger := opts.logger()

	loadResult, loadErrors := LoadSchemas(opts.Schemas, LoadModeFailFast)
	if len(loadErrors) > 0 {
		loadErr := firstLoadError(loadErrors)
		_ = formatter.Error(loadErr.Code, loadErr.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load schemas", loadErr)
	}
	reg := loadResult.Registry
	formatter.VerboseLog("Loaded %d schema(s) from %s", reg.Len(), opts.Schemas)

	data, err := readInput(input, cmd.InOrStdin())
	if err != nil {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read action", err)
	}
	a, err := action.Decode(data, reg)
	if err != nil {
		_ = formatter.Error(ErrCodeInvalidAction, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid action", err)
	}

	factories := []dispatch.Factory{
		normalizer.Factory(normalizer.WithLogger(logger)),
	}
	if opts.Journal != "" {
		j, err := journal.Open(opts.Journal,
			journal.WithRegistry(reg),
			journal.WithLogger(logger),
		)
		if err != nil {
			_ = formatter.Error(ErrCodeJournal, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer j.Close()
		factories = append(factories, j.RecorderContext(cmd.Context()))
	}

	var forwarded *action.Action
	reduce := func(state ir.Value, a action.Action) ir.Value {
		forwarded = &a
		return state
	}
	store := dispatch.New(reduce, ir.Null{}, factories...)

	if err := store.Dispatch(a); err != nil {
		code := string(schema.CodeOf(err))
		if code == "" {
			code = ErrCodeJournal
		}
		_ = formatter.Error(code, err.Error(), nil)
		return WrapExitError(ExitFailure, "action was not forwarded", err)
	}

	result := NormalizeResult{
		Type:       a.Type,
		Normalized: normalizer.Applies(a),
		Journaled:  opts.Journal != "",
		Action:     action.ToObject(*forwarded, reg),
	}
	if result.Normalized {
		if res, err := schema.ResultFromValue(forwarded.Payload); err == nil {
			result.Entities = res.Count()
		}
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	return outputNormalizeText(formatter.Writer, result)
}

func outputNormalizeText(w io.Writer, result NormalizeResult) error {
	if result.Normalized {
		fmt.Fprintf(w, "%s %s normalized (%d entities)\n", markOK, result.Type, result.Entities)
	} else {
		fmt.Fprintf(w, "%s %s passed through\n", markOK, result.Type)
	}

	doc, err := json.MarshalIndent(result.Action, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(doc))
	return nil
}

// readInput reads a file, or r when path is "-".
func readInput(path string, r io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(r)
	}
	return os.ReadFile(path)
}
