package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/1broseidon/layerctl/internal/control"
	"github.com/1broseidon/layerctl/internal/profile"
)

func printProfileUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: layerctl profile <command>")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  save <name>               Save the current layers and surfaces")
	fmt.Fprintln(w, "  load <name> [--replace]   Restore a saved arrangement")
	fmt.Fprintln(w, "  list                      List saved profiles")
	fmt.Fprintln(w, "  delete <name>             Delete a saved profile")
}

func runProfile(args []string) int {
	if len(args) == 0 {
		printProfileUsage(os.Stderr)
		return 2
	}

	switch args[0] {
	case "save":
		return runProfileSave(args[1:])
	case "load":
		return runProfileLoad(args[1:])
	case "list":
		return runProfileList(args[1:])
	case "delete":
		return runProfileDelete(args[1:])
	case "help", "-h", "--help":
		printProfileUsage(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown profile command: %s\n\n", args[0])
		printProfileUsage(os.Stderr)
		return 2
	}
}

func profileName(fs *flag.FlagSet) (string, bool) {
	if fs.NArg() != 1 {
		fs.Usage()
		return "", false
	}
	name := fs.Arg(0)
	if err := profile.ValidateName(name); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return "", false
	}
	return name, true
}

func runProfileSave(args []string) int {
	fs := newFlagSet("profile save", "layerctl profile save <name>", "Save the current layers, surfaces and screen orders.")
	socket := fs.String("socket", "", "Control socket path")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	name, ok := profileName(fs)
	if !ok {
		return 2
	}
	return withClient(*socket, func(ctx context.Context, c *control.Context) error {
		p, err := profile.Capture(ctx, c, name)
		if err != nil {
			return err
		}
		if err := profile.Write(p); err != nil {
			return err
		}
		path, _ := profile.Path(name)
		fmt.Printf("saved %d layers to %s\n", len(p.Layers), path)
		return nil
	})
}

func runProfileLoad(args []string) int {
	fs := newFlagSet("profile load", "layerctl profile load <name> [--replace]", "Restore a saved arrangement and commit.")
	socket := fs.String("socket", "", "Control socket path")
	replace := fs.Bool("replace", false, "Remove layers that are not in the profile")

	var pos []string
	for len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		pos = append(pos, args[0])
		args = args[1:]
	}
	if code, ok := parseFlags(fs, append(args, pos...)); !ok {
		return code
	}
	name, ok := profileName(fs)
	if !ok {
		return 2
	}
	p, err := profile.Read(name)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	return withClient(*socket, func(ctx context.Context, c *control.Context) error {
		rep, err := profile.Apply(ctx, c, p, profile.ApplyOptions{Replace: *replace})
		if err != nil {
			return err
		}
		if err := settle(ctx, c); err != nil {
			return err
		}
		fmt.Printf("loaded %s: %d layers created, %d removed\n", name, len(rep.CreatedLayers), len(rep.RemovedLayers))
		for _, id := range rep.MissingSurfaces {
			fmt.Fprintf(os.Stderr, "warning: surface %d no longer exists\n", id)
		}
		for _, s := range rep.MissingScreens {
			fmt.Fprintf(os.Stderr, "warning: screen %s not found\n", s)
		}
		return nil
	})
}

func runProfileList(args []string) int {
	fs := newFlagSet("profile list", "layerctl profile list", "List saved profiles.")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	names, err := profile.List()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	for _, n := range names {
		fmt.Println(n)
	}
	return 0
}

func runProfileDelete(args []string) int {
	fs := newFlagSet("profile delete", "layerctl profile delete <name>", "Delete a saved profile.")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	name, ok := profileName(fs)
	if !ok {
		return 2
	}
	if err := profile.Delete(name); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
