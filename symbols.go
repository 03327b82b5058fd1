package gmodule

// Symbol records one resolved export of a module and the caller slot it was written to.
type Symbol struct {
	Name string
	Slot *uintptr
}

func (m *Module) symbol(name string) *Symbol {
	for _, s := range m.symbols {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// record appends bookkeeping for name unless it already exists.
func (m *Module) record(name string, slot *uintptr) {
	if m.symbol(name) != nil {
		return
	}
	m.symbols = append(m.symbols, &Symbol{Name: name, Slot: slot})
}

func (m *Module) dropSymbols() {
	for i := range m.symbols {
		m.symbols[i] = nil
	}
	m.symbols = nil
}
