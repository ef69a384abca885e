package generator

import (
	"bytes"
	"embed"
	"fmt"
	"go/format"
	"go/token"
	"go/types"
	"os"
	"path"
	"reflect"
	"sort"
	"strings"
	"text/template"

	qglib "github.com/jerbob92/go-qglib"
	"github.com/pkg/errors"
	"golang.org/x/tools/go/packages"
)

var (
	//go:embed templates/*
	templates embed.FS
)

// Generate loads the package fileName belongs to and writes the signal
// wrappers for the struct typeName to output, relative to dir.
func Generate(dir string, fileName string, typeName string, output string) error {
	fset := token.NewFileSet()
	pkgs, err := packages.Load(&packages.Config{
		Dir:  dir,
		Fset: fset,
		Mode: packages.NeedSyntax | packages.NeedName | packages.NeedModule | packages.NeedTypes | packages.NeedTypesInfo,
	}, fmt.Sprintf("file=%s", fileName))
	if err != nil {
		return err
	}
	if len(pkgs) == 0 {
		return errors.Errorf("no package found for %s", fileName)
	}
	if len(pkgs[0].Errors) > 0 {
		return errors.Errorf("could not load package %s: %v", pkgs[0].PkgPath, pkgs[0].Errors[0])
	}

	data, err := Collect(pkgs[0].Types, typeName)
	if err != nil {
		return err
	}

	source, err := Render(data)
	if err != nil {
		return err
	}

	if output == "" {
		output = DefaultOutput(typeName)
	}
	return os.WriteFile(path.Join(dir, output), source, 0o644)
}

// DefaultOutput is the file name used when no output is given.
func DefaultOutput(typeName string) string {
	return strings.ToLower(typeName) + "_qglib.go"
}

var flagConstants = map[qglib.SignalFlags]string{
	qglib.SignalRunFirst:   "qglib.SignalRunFirst",
	qglib.SignalRunLast:    "qglib.SignalRunLast",
	qglib.SignalRunCleanup: "qglib.SignalRunCleanup",
	qglib.SignalNoRecurse:  "qglib.SignalNoRecurse",
	qglib.SignalDetailed:   "qglib.SignalDetailed",
	qglib.SignalAction:     "qglib.SignalAction",
	qglib.SignalNoHooks:    "qglib.SignalNoHooks",
}

func flagsExpression(flags qglib.SignalFlags) string {
	var parts []string
	for flag, constant := range flagConstants {
		if flags&flag != 0 {
			parts = append(parts, constant)
		}
	}
	if len(parts) == 0 {
		return "0"
	}
	sort.Strings(parts)
	return strings.Join(parts, " | ")
}

// Collect reads the signal declarations from the struct typeName in pkg.
// Every func typed field with a qglib tag declares one signal.
func Collect(pkg *types.Package, typeName string) (TemplateData, error) {
	obj := pkg.Scope().Lookup(typeName)
	if obj == nil {
		return TemplateData{}, errors.Errorf("type %s not found in package %s", typeName, pkg.Path())
	}
	st, ok := obj.Type().Underlying().(*types.Struct)
	if !ok {
		return TemplateData{}, errors.Errorf("type %s is not a struct", typeName)
	}

	imports := map[string]string{}
	qualifier := func(other *types.Package) string {
		if other == pkg {
			return ""
		}
		imports[other.Path()] = other.Name()
		return other.Name()
	}

	data := TemplateData{
		Pkg:      pkg.Name(),
		PkgPath:  pkg.Path(),
		TypeName: typeName,
		Prefix:   strings.TrimSuffix(typeName, "Signals"),
	}

	for i := 0; i < st.NumFields(); i++ {
		field := st.Field(i)
		tag, ok := reflect.StructTag(st.Tag(i)).Lookup("qglib")
		if !ok || tag == "-" {
			continue
		}

		sig, ok := field.Type().Underlying().(*types.Signature)
		if !ok {
			return TemplateData{}, errors.Errorf("field %s of %s has a qglib tag but is not a func", field.Name(), typeName)
		}

		signal, err := collectSignal(field.Name(), tag, sig, qualifier)
		if err != nil {
			return TemplateData{}, errors.Wrapf(err, "field %s of %s", field.Name(), typeName)
		}
		data.Signals = append(data.Signals, signal)
	}

	if len(data.Signals) == 0 {
		return TemplateData{}, errors.Errorf("type %s declares no signals", typeName)
	}

	for importPath, name := range imports {
		data.Imports = append(data.Imports, TemplateImport{Name: name, Path: importPath})
	}
	sort.Slice(data.Imports, func(i, j int) bool {
		return data.Imports[i].Path < data.Imports[j].Path
	})

	return data, nil
}

func collectSignal(fieldName string, tag string, sig *types.Signature, qualifier types.Qualifier) (TemplateSignal, error) {
	parts := strings.Split(tag, ",")
	name := strings.TrimSpace(parts[0])
	if name == "" {
		return TemplateSignal{}, errors.New("signal name is empty")
	}

	flags, err := qglib.ParseSignalFlags(parts[1:]...)
	if err != nil {
		return TemplateSignal{}, err
	}

	if sig.Variadic() {
		return TemplateSignal{}, errors.New("variadic signals are not supported")
	}
	if sig.Results().Len() > 1 {
		return TemplateSignal{}, errors.New("signals return at most one value")
	}

	signal := TemplateSignal{
		Name:   strings.ReplaceAll(name, "_", "-"),
		GoName: fieldName,
		Flags:  flagsExpression(flags),
	}

	params := sig.Params()
	for i := 0; i < params.Len(); i++ {
		paramName := params.At(i).Name()
		if paramName == "" || paramName == "_" || paramName == "instance" {
			paramName = fmt.Sprintf("arg%d", i)
		}
		signal.Params = append(signal.Params, TemplateParam{
			Name: paramName,
			Type: types.TypeString(params.At(i).Type(), qualifier),
		})
	}

	if sig.Results().Len() == 1 {
		signal.ReturnType = types.TypeString(sig.Results().At(0).Type(), qualifier)
	}

	return signal, nil
}

var TemplateFunctions = template.FuncMap{
	"lower": strings.ToLower,
}

// Render executes the signals template and formats the result.
func Render(data TemplateData) ([]byte, error) {
	tmpl, err := template.New("").
		Funcs(TemplateFunctions).
		ParseFS(templates, "templates/*.tmpl")
	if err != nil {
		return nil, err
	}
	return ExecuteTemplate(tmpl, "signals.tmpl", data)
}

func ExecuteTemplate(tmpl *template.Template, name string, data TemplateData) ([]byte, error) {
	writer := bytes.NewBuffer(nil)
	err := tmpl.ExecuteTemplate(writer, name, data)
	if err != nil {
		return nil, err
	}

	fileBytes := writer.Bytes()
	formattedSource, err := format.Source(fileBytes)
	if err != nil {
		return nil, errors.Wrapf(err, "could not format %s, source:\n%s", name, fileBytes)
	}
	return formattedSource, nil
}

type TemplateData struct {
	Pkg      string
	PkgPath  string
	TypeName string
	Prefix   string
	Imports  []TemplateImport
	Signals  []TemplateSignal
}

type TemplateImport struct {
	Name string
	Path string
}

type TemplateSignal struct {
	Name       string
	GoName     string
	Flags      string
	Params     []TemplateParam
	ReturnType string
}

type TemplateParam struct {
	Name string
	Type string
}
