package main

import (
	"fmt"

	"github.com/gocrud/modkit/di"
)

// 定义接口
type Logger interface {
	Log(msg string)
}

type Database interface {
	Connect() error
}

// 实现
type ConsoleLogger struct {
	Prefix string
}

func (c *ConsoleLogger) Log(msg string) {
	fmt.Println(c.Prefix + ": " + msg)
}

type MySQLDatabase struct {
	DSN string
}

func (m *MySQLDatabase) Connect() error {
	fmt.Println("Connecting to MySQL at", m.DSN)
	return nil
}

// 服务
type UserService struct {
	Logger Logger
	DB     Database
}

func NewUserService(logger Logger, db Database) *UserService {
	return &UserService{Logger: logger, DB: db}
}

var DSN = di.NewToken[string]("dsn")

func main() {
	reg := di.NewKeyRegistry()

	inj, err := di.ResolveAndCreate(reg, []any{
		di.ValueProvider{Token: di.TypeOf[Logger](), UseValue: &ConsoleLogger{Prefix: "APP"}},
		di.ValueProvider{Token: DSN, UseValue: "root@tcp(localhost:3306)/app"},
		di.FactoryProvider{
			Token:      di.TypeOf[Database](),
			UseFactory: func(dsn string) Database { return &MySQLDatabase{DSN: dsn} },
			Deps:       []any{DSN},
		},
		NewUserService,
	})
	if err != nil {
		panic(err)
	}

	svc := di.MustInject[*UserService](inj)
	svc.Logger.Log("UserService resolved")
	_ = svc.DB.Connect()
}
