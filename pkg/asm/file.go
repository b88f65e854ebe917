package asm

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/GriffinCanCode/abcopt/pkg/abc"
	"github.com/GriffinCanCode/abcopt/pkg/method"
)

// File is the YAML layout of a program
type File struct {
	Methods []MethodFile `yaml:"methods"`
}

type MethodFile struct {
	Name       string          `yaml:"name"`
	Code       string          `yaml:"code"`
	Exceptions []ExceptionFile `yaml:"exceptions,omitempty"`
}

// ExceptionFile names the labels of one exception table entry
type ExceptionFile struct {
	From   string `yaml:"from"`
	To     string `yaml:"to"`
	Target string `yaml:"target"`
	Type   string `yaml:"type,omitempty"`
	Var    string `yaml:"var,omitempty"`
}

// Load reads a program from a YAML file
func Load(path string) (*method.Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open program")
	}
	defer f.Close()

	prog, err := Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return prog, nil
}

// Decode reads a program in YAML form
func Decode(r io.Reader) (*method.Program, error) {
	var file File
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, errors.Wrap(err, "decode yaml")
	}

	prog := &method.Program{}
	seen := make(map[string]bool, len(file.Methods))
	for i, mf := range file.Methods {
		if mf.Name == "" {
			return nil, errors.Errorf("method #%d has no name", i)
		}
		if seen[mf.Name] {
			return nil, errors.Errorf("method %s is defined twice", mf.Name)
		}
		seen[mf.Name] = true

		mb, err := mf.body()
		if err != nil {
			return nil, errors.Wrapf(err, "method %s", mf.Name)
		}
		prog.Methods = append(prog.Methods, mb)
	}
	return prog, nil
}

func (mf MethodFile) body() (*method.MethodBody, error) {
	listing, err := Parse(mf.Code)
	if err != nil {
		return nil, err
	}

	exceptions := make([]*abc.ExceptionInfo, 0, len(mf.Exceptions))
	for _, ef := range mf.Exceptions {
		var labels [3]*abc.Label
		for k, name := range [3]string{ef.From, ef.To, ef.Target} {
			if !listing.Defined(name) {
				return nil, errors.Errorf("exception label %q is not defined", name)
			}
			labels[k] = listing.Label(name)
		}
		exceptions = append(exceptions, abc.NewExceptionInfo(labels[0], labels[1], labels[2], ef.Type, ef.Var))
	}
	return method.New(mf.Name, listing.Instructions, exceptions), nil
}

// Encode writes prog in YAML form. Dead exception entries are left out.
func Encode(w io.Writer, prog *method.Program) error {
	file := File{Methods: make([]MethodFile, 0, len(prog.Methods))}
	for _, mb := range prog.Methods {
		n := newNamer()
		mf := MethodFile{Name: mb.Name, Code: n.format(mb.Instructions)}
		for _, ex := range mb.LiveExceptions() {
			mf.Exceptions = append(mf.Exceptions, ExceptionFile{
				From:   n.name(ex.From),
				To:     n.name(ex.To),
				Target: n.name(ex.Target),
				Type:   ex.ExceptionType,
				Var:    ex.VarName,
			})
		}
		file.Methods = append(file.Methods, mf)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&file); err != nil {
		return errors.Wrap(err, "encode yaml")
	}
	return errors.Wrap(enc.Close(), "encode yaml")
}

// Save writes prog to a YAML file
func Save(path string, prog *method.Program) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create output")
	}
	if err := Encode(f, prog); err != nil {
		f.Close()
		return errors.Wrapf(err, "save %s", path)
	}
	return errors.Wrapf(f.Close(), "save %s", path)
}
