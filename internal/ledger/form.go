package ledger

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed forms.yaml
var defaultFormsYAML []byte

type Field struct {
	ID          string   `yaml:"id" json:"id"`
	Label       string   `yaml:"label" json:"label"`
	Kind        Kind     `yaml:"kind" json:"kind"`
	Role        Role     `yaml:"role" json:"role,omitempty"`
	DefaultMode Mode     `yaml:"default_mode" json:"default_mode"`
	Synonyms    []string `yaml:"synonyms" json:"synonyms"`
	Required    bool     `yaml:"required" json:"required"`
}

// Form is one kind of record a sender can fill in. Field order is the
// registration order used when a single message sets several fields.
type Form struct {
	Name   string   `yaml:"name" json:"name"`
	Title  string   `yaml:"title" json:"title"`
	Roles  []string `yaml:"roles" json:"roles,omitempty"`
	Fields []Field  `yaml:"fields" json:"fields"`

	byID map[string]int
}

func (f *Form) Field(id string) (Field, bool) {
	i, ok := f.byID[id]
	if !ok {
		return Field{}, false
	}
	return f.Fields[i], true
}

// FieldOfKind returns the first field with the given kind.
func (f *Form) FieldOfKind(k Kind) (Field, bool) {
	for _, fd := range f.Fields {
		if fd.Kind == k {
			return fd, true
		}
	}
	return Field{}, false
}

func (f *Form) IsRole(word string) bool {
	for _, r := range f.Roles {
		if strings.EqualFold(r, word) {
			return true
		}
	}
	return false
}

type Forms struct {
	byName map[string]*Form
	order  []string
}

func (fs *Forms) Lookup(name string) (*Form, bool) {
	f, ok := fs.byName[strings.ToLower(name)]
	return f, ok
}

func (fs *Forms) Names() []string {
	return append([]string(nil), fs.order...)
}

// DefaultForms parses the forms shipped with the binary.
func DefaultForms() (*Forms, error) {
	return ParseForms(defaultFormsYAML)
}

// LoadForms reads form definitions from path, falling back to the embedded
// definitions when path is empty.
func LoadForms(path string) (*Forms, error) {
	if path == "" {
		return DefaultForms()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read forms file: %w", err)
	}
	return ParseForms(data)
}

func ParseForms(data []byte) (*Forms, error) {
	var doc struct {
		Forms []*Form `yaml:"forms"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse forms: %w", err)
	}
	if len(doc.Forms) == 0 {
		return nil, fmt.Errorf("no forms defined")
	}

	fs := &Forms{byName: make(map[string]*Form)}
	for _, f := range doc.Forms {
		if err := f.normalize(); err != nil {
			return nil, err
		}
		if _, dup := fs.byName[f.Name]; dup {
			return nil, fmt.Errorf("form %q defined twice", f.Name)
		}
		fs.byName[f.Name] = f
		fs.order = append(fs.order, f.Name)
	}
	return fs, nil
}

func (f *Form) normalize() error {
	f.Name = strings.ToLower(strings.TrimSpace(f.Name))
	if f.Name == "" {
		return fmt.Errorf("form without a name")
	}
	for i, r := range f.Roles {
		f.Roles[i] = strings.ToLower(strings.TrimSpace(r))
	}

	f.byID = make(map[string]int, len(f.Fields))
	counts := make(map[Kind]int)
	for i := range f.Fields {
		fd := &f.Fields[i]
		if fd.ID == "" {
			return fmt.Errorf("form %s: field %d has no id", f.Name, i)
		}
		if _, dup := f.byID[fd.ID]; dup {
			return fmt.Errorf("form %s: field %q defined twice", f.Name, fd.ID)
		}
		switch fd.Kind {
		case KindDate, KindEntity, KindAmount, KindText, KindExpenses, KindStaff:
		default:
			return fmt.Errorf("form %s: field %s has unknown kind %q", f.Name, fd.ID, fd.Kind)
		}
		counts[fd.Kind]++
		if fd.Label == "" {
			fd.Label = fd.ID
		}
		if fd.DefaultMode == "" {
			fd.DefaultMode = Cash
		}
		if fd.Kind == KindStaff && len(fd.Synonyms) == 0 {
			fd.Synonyms = append([]string(nil), f.Roles...)
		}
		if len(fd.Synonyms) == 0 {
			return fmt.Errorf("form %s: field %s has no synonyms", f.Name, fd.ID)
		}
		for j, syn := range fd.Synonyms {
			fd.Synonyms[j] = strings.ToLower(strings.Join(strings.Fields(syn), " "))
		}
		f.byID[fd.ID] = i
	}

	if counts[KindDate] != 1 || counts[KindEntity] != 1 {
		return fmt.Errorf("form %s: needs exactly one date and one entity field", f.Name)
	}
	if counts[KindExpenses] > 1 || counts[KindStaff] > 1 {
		return fmt.Errorf("form %s: at most one expense list and one staff list", f.Name)
	}
	if counts[KindStaff] == 1 && len(f.Roles) == 0 {
		return fmt.Errorf("form %s: staff list needs roles", f.Name)
	}
	return nil
}
