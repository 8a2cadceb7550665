package di_test

import (
	"sync/atomic"
)

type Engine struct {
	Power int
}

func NewEngine() *Engine {
	return &Engine{Power: 150}
}

type Car struct {
	Engine *Engine
}

func NewCar(engine *Engine) *Car {
	return &Car{Engine: engine}
}

type Vehicle interface {
	Wheels() int
}

func (c *Car) Wheels() int { return 4 }

type CycA struct{ B *CycB }
type CycB struct{ A *CycA }

func NewCycA(b *CycB) *CycA { return &CycA{B: b} }
func NewCycB(a *CycA) *CycB { return &CycB{A: a} }

type Needy struct{ Z *Missing }
type Missing struct{}

func NewNeedy(z *Missing) *Needy { return &Needy{Z: z} }

// counter 统计构造函数被调用的次数
type counter struct {
	n atomic.Int32
}

func (c *counter) engine() *Engine {
	c.n.Add(1)
	return NewEngine()
}
