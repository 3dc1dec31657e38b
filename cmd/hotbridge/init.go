package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/hotbridge-dev/hotbridge/internal/config"
	"github.com/hotbridge-dev/hotbridge/internal/errors"
)

var projectNameRe = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

func initCmd() *cobra.Command {
	var entry string

	cmd := &cobra.Command{
		Use:   "init [name]",
		Short: "Initialize a hotbridge project",
		Long: `Initialize hotbridge in the current directory.

Writes a hotbridge.json and a minimal handler package at the entry
path. With a name argument, the config records it as the project name.

Examples:
  hotbridge init
  hotbridge init my-api --entry=./api`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return runInit(name, entry)
		},
	}

	cmd.Flags().StringVarP(&entry, "entry", "e", config.DefaultEntry, "Handler package path")

	return cmd
}

func runInit(name, entry string) error {
	if name != "" && !projectNameRe.MatchString(name) {
		return errors.New("E182").WithDetail("'" + name + "' is not a valid project name")
	}

	wd, err := os.Getwd()
	if err != nil {
		return err
	}

	cfgPath := filepath.Join(wd, config.ConfigFileName)
	if _, err := os.Stat(cfgPath); err == nil {
		return errors.New("E181").WithDetail(cfgPath + " already exists")
	}

	printBanner()
	fmt.Println("  init")
	fmt.Println()

	cfgBody := "{\n"
	if name != "" {
		cfgBody += fmt.Sprintf("  %q: %q,\n", "name", name)
	}
	cfgBody += fmt.Sprintf("  %q: %q\n}\n", "entry", entry)

	if err := os.WriteFile(cfgPath, []byte(cfgBody), 0644); err != nil {
		return err
	}
	success("Wrote %s", config.ConfigFileName)

	entryDir := filepath.Join(wd, filepath.FromSlash(entry))
	handlerPath := filepath.Join(entryDir, "handler.go")
	if _, err := os.Stat(handlerPath); err == nil {
		info("%s already exists, leaving it alone", handlerPath)
	} else {
		if err := os.MkdirAll(entryDir, 0755); err != nil {
			return err
		}
		if err := os.WriteFile(handlerPath, []byte(handlerStub), 0644); err != nil {
			return err
		}
		success("Wrote %s", filepath.Join(entry, "handler.go"))
	}

	fmt.Println()
	info("Run `hotbridge dev` to start the gateway.")
	fmt.Println()

	return nil
}

// handlerStub is the scaffolded entry package. The exported Handler
// variable is the symbol the plugin loader looks up.
const handlerStub = `package api

import (
	"context"
	"net/http"

	"github.com/hotbridge-dev/hotbridge/pkg/gateway"
)

// Handler serves every request under the gateway's API prefix.
var Handler gateway.Handler = gateway.HandlerFunc(handle)

func handle(ctx context.Context, req *gateway.Request) (*gateway.Response, error) {
	return &gateway.Response{
		Status: http.StatusOK,
		Body:   []byte("hello from hotbridge\n"),
	}, nil
}
`
