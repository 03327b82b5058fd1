package sample

import "strings"

// Build the object with a go sdk prepared for goloader:
//
//go:generate go tool compile -p sample -o sample.o sample.go

type proto struct {
	name string
}

func (p proto) Name() string {
	return p.name
}

func Run() string {
	return "sample"
}

func Upper(s string) string {
	return strings.ToUpper(s)
}

func NewName(name string) string {
	return proto{name: name}.Name()
}
