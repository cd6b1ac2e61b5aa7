package ir

import "fmt"

// Builder assembles a FunctionUnit. Every method returns a new Builder and
// leaves the receiver untouched, so a partially built unit can be shared
// between recursive lowering calls.
type Builder interface {
	Build() (*FunctionUnit, error)

	AddStatement(n Node) Builder
	AddImport(ref *ImportRef) Builder
	SetParams(params ...Node) Builder
	SetLocals(names ...string) Builder
	SetBody(n Node) Builder

	// Statements reports how many statements have been added.
	Statements() int
}

type builderImpl struct {
	out *FunctionUnit
}

func (b *builderImpl) String() string {
	return fmt.Sprintf("%#v", b.out)
}

func (b *builderImpl) with(edit func(u *FunctionUnit)) *builderImpl {
	u := *b.out
	u.Params = append([]Node{}, b.out.Params...)
	u.Locals = append([]string{}, b.out.Locals...)
	u.Statements = append([]Node{}, b.out.Statements...)
	u.Imports = append([]*ImportRef{}, b.out.Imports...)
	edit(&u)
	return &builderImpl{out: &u}
}

// AddStatement implements Builder.
func (b *builderImpl) AddStatement(n Node) Builder {
	return b.with(func(u *FunctionUnit) { u.Statements = append(u.Statements, n) })
}

// AddImport implements Builder. Duplicate units are recorded once.
func (b *builderImpl) AddImport(ref *ImportRef) Builder {
	for _, have := range b.out.Imports {
		if have.Unit == ref.Unit {
			return b
		}
	}
	return b.with(func(u *FunctionUnit) { u.Imports = append(u.Imports, ref) })
}

// SetParams implements Builder.
func (b *builderImpl) SetParams(params ...Node) Builder {
	return b.with(func(u *FunctionUnit) { u.Params = append([]Node{}, params...) })
}

// SetLocals implements Builder.
func (b *builderImpl) SetLocals(names ...string) Builder {
	return b.with(func(u *FunctionUnit) { u.Locals = append([]string{}, names...) })
}

// SetBody implements Builder.
func (b *builderImpl) SetBody(n Node) Builder {
	return b.with(func(u *FunctionUnit) { u.Body = n })
}

func (b *builderImpl) Statements() int { return len(b.out.Statements) }

func (b *builderImpl) Build() (*FunctionUnit, error) {
	if b.out.Name == "" {
		return nil, fmt.Errorf("function unit has no name")
	}
	if b.out.Body == nil {
		return nil, fmt.Errorf("function unit %s has no body", b.out.Name)
	}
	u := *b.out
	return &u, nil
}

func NewUnit(name, source string) Builder {
	return &builderImpl{
		out: &FunctionUnit{Name: name, Source: source},
	}
}
