package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/fatih/color"
	"github.com/goccy/go-json"
	"github.com/mattn/go-isatty"

	entikit "github.com/reoring/entikit"
	"github.com/reoring/entikit/i18n"
	"github.com/reoring/entikit/jsonschema"
	"github.com/reoring/entikit/schema"
	"github.com/reoring/entikit/serialize"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		color.NoColor = true
	}
	var err error
	switch os.Args[1] {
	case "convert":
		err = convertCmd(os.Args[2:])
	case "validate":
		err = validateCmd(os.Args[2:])
	case "export":
		err = exportCmd(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		reportError(err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `entikit CLI

Usage:
  entikit convert  -schema defs.yaml -entity name [-dir decode|encode] [-fields a,b] [-groups g1,g2] [-loose] [-debug] [file.json]
  entikit validate -schema defs.yaml -entity name [file.json]
  entikit export   -schema defs.yaml -entity name

Input defaults to stdin when no file is given.`)
}

type cmdFlags struct {
	fs        *flag.FlagSet
	schemaDef string
	entity    string
	dir       string
	fields    string
	groups    string
	loose     bool
	debug     bool
	lang      string
}

func newFlags(name string) *cmdFlags {
	cf := &cmdFlags{fs: flag.NewFlagSet(name, flag.ExitOnError)}
	cf.fs.StringVar(&cf.schemaDef, "schema", "", "entity definition file (YAML)")
	cf.fs.StringVar(&cf.entity, "entity", "", "entity name to operate on")
	cf.fs.StringVar(&cf.dir, "dir", "decode", "conversion direction: decode or encode")
	cf.fs.StringVar(&cf.fields, "fields", "", "comma-separated field subset for partial conversion")
	cf.fs.StringVar(&cf.groups, "groups", "", "comma-separated visibility groups")
	cf.fs.BoolVar(&cf.loose, "loose", false, "tolerate shape mismatches (coerce compatible values)")
	cf.fs.BoolVar(&cf.debug, "debug", false, "dump the result structure to stderr")
	cf.fs.StringVar(&cf.lang, "lang", "", "message language (en, ja)")
	return cf
}

func (cf *cmdFlags) parse(args []string) error {
	if err := cf.fs.Parse(args); err != nil {
		return err
	}
	if cf.schemaDef == "" || cf.entity == "" {
		cf.fs.Usage()
		return fmt.Errorf("-schema and -entity are required")
	}
	if cf.lang != "" {
		i18n.SetLanguage(cf.lang)
	}
	return nil
}

func (cf *cmdFlags) loadSchema() (*schema.Schema, *serialize.Compiler, error) {
	reg := schema.NewRegistry()
	if _, err := loadDefinitions(cf.schemaDef, reg); err != nil {
		return nil, nil, err
	}
	s, err := reg.Schema(cf.entity)
	if err != nil {
		return nil, nil, err
	}
	return s, serialize.NewCompiler(reg), nil
}

func (cf *cmdFlags) readInput() (any, error) {
	if cf.fs.NArg() > 0 {
		f, err := os.Open(cf.fs.Arg(0))
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return entikit.JSONReader(f)
	}
	return entikit.JSONReader(os.Stdin)
}

func (cf *cmdFlags) opt() *entikit.ConvertOpt {
	opt := &entikit.ConvertOpt{Loosely: cf.loose}
	if cf.groups != "" {
		opt.Groups = strings.Split(cf.groups, ",")
	}
	return opt
}

func convertCmd(args []string) error {
	cf := newFlags("convert")
	if err := cf.parse(args); err != nil {
		return err
	}
	var dir entikit.Direction
	switch cf.dir {
	case "decode":
		dir = entikit.Decode
	case "encode":
		dir = entikit.Encode
	default:
		return fmt.Errorf("unknown direction %q", cf.dir)
	}
	s, c, err := cf.loadSchema()
	if err != nil {
		return err
	}
	data, err := cf.readInput()
	if err != nil {
		return err
	}
	ctx := context.Background()
	var out any
	if cf.fields != "" {
		out, err = c.ConvertPartial(ctx, s, "json", dir, strings.Split(cf.fields, ","), data, cf.opt())
	} else {
		out, err = c.Convert(ctx, s, "json", dir, data, cf.opt())
	}
	if err != nil {
		return err
	}
	if cf.debug {
		spew.Fdump(os.Stderr, out)
	}
	return writeJSON(out)
}

func validateCmd(args []string) error {
	cf := newFlags("validate")
	if err := cf.parse(args); err != nil {
		return err
	}
	s, c, err := cf.loadSchema()
	if err != nil {
		return err
	}
	data, err := cf.readInput()
	if err != nil {
		return err
	}
	errs, err := c.Validate(context.Background(), s, data)
	if err != nil {
		return err
	}
	if len(errs) > 0 {
		return errs
	}
	fmt.Fprintln(os.Stderr, color.GreenString("ok: %s", s.Name))
	return nil
}

func exportCmd(args []string) error {
	cf := newFlags("export")
	if err := cf.parse(args); err != nil {
		return err
	}
	reg := schema.NewRegistry()
	if _, err := loadDefinitions(cf.schemaDef, reg); err != nil {
		return err
	}
	s, err := reg.Schema(cf.entity)
	if err != nil {
		return err
	}
	js, err := jsonschema.FromSchema(s, reg)
	if err != nil {
		return err
	}
	return writeJSON(js)
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// reportError renders FieldErrors one finding per line; other errors print as
// a single message.
func reportError(err error) {
	if fe, ok := entikit.AsFieldErrors(err); ok {
		for _, it := range fe {
			path := it.Path
			if path == "" {
				path = "(root)"
			}
			fmt.Fprintf(os.Stderr, "%s %s: %s\n", color.RedString(it.Code), color.CyanString(path), it.Message)
		}
		return
	}
	fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
}
