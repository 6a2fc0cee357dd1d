// Package commands holds types and functions common across all ACMEShell
// commands.
package commands

import (
	"encoding/json"
	"flag"
	"fmt"
	"strings"

	"github.com/abiosoft/ishell"
)

const (
	// The base prompt used for shell commands
	BasePrompt = "[ ACME ] > "
	// The ishell context key that we store the *State under.
	StateKey = "state"
)

// shellContext is a common interface that can be used to retrieve objects from
// a ishell.Shell or an ishell.Context.
type shellContext interface {
	Get(string) interface{}
}

// GetState reads a *State from the shellContext or panics.
func GetState(c shellContext) *State {
	rawState := c.Get(StateKey)
	if rawState == nil {
		panic(fmt.Sprintf("nil %q value in shellContext", StateKey))
	}

	if s, ok := rawState.(*State); ok {
		return s
	}

	panic(fmt.Sprintf(
		"%q value in shellContext was not a *commands.State",
		StateKey))
}

// ReadJSON prompts for a multi-line JSON body terminated by a lone ".".
func ReadJSON(c *ishell.Context) string {
	return ReadLines(c, "JSON", "Input JSON POST request body.")
}

// ReadLines prompts for multi-line input terminated by a lone ".".
func ReadLines(c *ishell.Context, prompt, msg string) string {
	c.SetPrompt(BasePrompt + prompt + " > ")
	defer c.SetPrompt(BasePrompt)
	terminator := "."
	c.Printf("%s End by sending '%s'\n", msg, terminator)
	return strings.TrimSuffix(c.ReadMultiLines(terminator), terminator)
}

func PrintJSON(ob interface{}) (string, error) {
	bytes, err := json.MarshalIndent(ob, "", "  ")
	if err != nil {
		return "", err
	}
	return string(bytes), err
}

var commands []commandRegistry

type commandRegistry struct {
	Cmd           *ishell.Cmd
	Autocompleter NewCommandAutocompleter
}

// NewCommandAutocompleter builds a completer once the State is known.
type NewCommandAutocompleter func(s *State) func(args []string) []string

// AddCommands adds every registered command to shell, building completers
// against s.
func AddCommands(shell *ishell.Shell, s *State) {
	for _, cmdReg := range commands {
		if cmdReg.Autocompleter != nil {
			cmdReg.Cmd.Completer = cmdReg.Autocompleter(s)
		}
		shell.AddCmd(cmdReg.Cmd)
	}
}

type NewCommandHandler func(c *ishell.Context, leftovers []string)

// RegisterCommand records cmd for AddCommands. The cmd's Func is replaced by
// one that parses flags before calling handler with the leftover args.
func RegisterCommand(
	cmd *ishell.Cmd,
	completerFunc NewCommandAutocompleter,
	handler NewCommandHandler,
	flags *flag.FlagSet) {
	if flags == nil {
		flags = flag.NewFlagSet(cmd.Name, flag.ContinueOnError)
	}
	cmd.Func = wrapHandler(cmd.Name, handler, flags)
	commands = append(commands, commandRegistry{
		Cmd:           cmd,
		Autocompleter: completerFunc,
	})
}

func wrapHandler(name string, handler NewCommandHandler, flags *flag.FlagSet) func(*ishell.Context) {
	return func(c *ishell.Context) {
		leftovers, err := ParseFlagSetArgs(c.Args, flags)
		if err == flag.ErrHelp {
			// The help was already printed.
			return
		} else if err != nil {
			c.Printf("%s: error parsing input flags: %v\n", name, err)
			return
		}
		handler(c, leftovers)
	}
}

// ParseFlagSetArgs parses args with flags, returning the leftover arguments.
// Flag values not given in args are reset to their defaults first so a flag
// set shared between invocations does not leak state.
func ParseFlagSetArgs(args []string, flags *flag.FlagSet) ([]string, error) {
	flags.VisitAll(func(f *flag.Flag) {
		_ = f.Value.Set(f.DefValue)
	})
	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	return flags.Args(), nil
}

// DirectoryAutocompleter completes the "directory" keyword and the resources
// the server currently publishes in s.Directory.
func DirectoryAutocompleter(s *State) func(args []string) []string {
	return func(args []string) []string {
		options := []string{"directory"}
		for _, r := range s.Directory.Resources() {
			options = append(options, r.String())
		}
		return options
	}
}

// PrintExchange prints the exchange a command just made, or the error that
// prevented it.
func PrintExchange(c *ishell.Context, name string, s *State, status int, err error) {
	out, err := s.Describe(status, err)
	if err != nil {
		c.Printf("%s: %v\n", name, err)
		return
	}
	c.Print(out)
}
