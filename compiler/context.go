package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Context: tables shared by the passes of one compilation
// ---------------------------------------------------------------------------

// EntryKind identifies what a symbol table entry was declared as.
type EntryKind int

const (
	KindVar EntryKind = iota
	KindPar
	KindFun
	KindClass
	KindField
	KindMethod
)

var entryKindNames = [...]string{
	KindVar:    "var",
	KindPar:    "par",
	KindFun:    "fun",
	KindClass:  "class",
	KindField:  "field",
	KindMethod: "method",
}

func (k EntryKind) String() string {
	if int(k) < len(entryKindNames) {
		return entryKindNames[k]
	}
	return fmt.Sprintf("EntryKind(%d)", int(k))
}

// Entry is a symbol table entry: the nesting level of the declaration, its
// type and its offset within the frame, object or dispatch table.
type Entry struct {
	Level  int
	Type   Type
	Offset int
	Kind   EntryKind
	Decl   Node // declaring node, used for diagnostics and the language server
}

func (e *Entry) String() string {
	return fmt.Sprintf("%s nl=%d off=%d type=%s", e.Kind, e.Level, e.Offset, TypeString(e.Type))
}

// VirtualTable maps member names of a class to their entries. Names keeps
// insertion order so listings are deterministic.
type VirtualTable struct {
	Names   []string
	Entries map[string]*Entry
}

// NewVirtualTable creates an empty virtual table.
func NewVirtualTable() *VirtualTable {
	return &VirtualTable{Entries: make(map[string]*Entry)}
}

// Copy returns a shallow copy: the entries are shared, the mapping is not.
func (vt *VirtualTable) Copy() *VirtualTable {
	c := &VirtualTable{
		Names:   make([]string, len(vt.Names)),
		Entries: make(map[string]*Entry, len(vt.Entries)),
	}
	copy(c.Names, vt.Names)
	for name, e := range vt.Entries {
		c.Entries[name] = e
	}
	return c
}

// Lookup returns the entry for name, or nil.
func (vt *VirtualTable) Lookup(name string) *Entry {
	return vt.Entries[name]
}

// Put installs or replaces the entry for name.
func (vt *VirtualTable) Put(name string, e *Entry) {
	if _, ok := vt.Entries[name]; !ok {
		vt.Names = append(vt.Names, name)
	}
	vt.Entries[name] = e
}

// Context holds the process-wide tables of a single compilation run. The
// symbol table pass writes them; later passes only read them.
type Context struct {
	// ClassTable maps a class name to its virtual table.
	ClassTable map[string]*VirtualTable
	// SuperType maps a class name to its direct superclass.
	SuperType map[string]string
	// Classes maps a class name to its declaration.
	Classes map[string]*ClassDecl
	// DispatchTables maps a class name to the method labels of its dispatch
	// table, ordered by method offset. Written by the code generator.
	DispatchTables map[string][]string
}

// NewContext creates an empty compilation context.
func NewContext() *Context {
	return &Context{
		ClassTable:     make(map[string]*VirtualTable),
		SuperType:      make(map[string]string),
		Classes:        make(map[string]*ClassDecl),
		DispatchTables: make(map[string][]string),
	}
}

// IsClass reports whether name was declared as a class.
func (c *Context) IsClass(name string) bool {
	_, ok := c.ClassTable[name]
	return ok
}

// Superclasses returns the chain of superclasses of name, nearest first.
func (c *Context) Superclasses(name string) []string {
	var chain []string
	seen := map[string]bool{name: true}
	for cur, ok := c.SuperType[name]; ok; cur, ok = c.SuperType[cur] {
		if seen[cur] {
			break
		}
		seen[cur] = true
		chain = append(chain, cur)
	}
	return chain
}
