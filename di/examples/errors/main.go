package main

import (
	"errors"
	"fmt"

	"github.com/gocrud/modkit/di"
)

type A struct{ B *B }
type B struct{ A *A }

func NewA(b *B) *A { return &A{B: b} }
func NewB(a *A) *B { return &B{A: a} }

func main() {
	inj, err := di.ResolveAndCreate(di.NewKeyRegistry(), []any{NewA, NewB})
	if err != nil {
		panic(err)
	}

	_, err = di.Inject[*A](inj)

	var coder di.Coder
	if errors.As(err, &coder) {
		fmt.Printf("code=%s path=%s\n", coder.Code(), coder.Path())
	}
	fmt.Println(err)
}
