package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	jsoniter "github.com/json-iterator/go"

	"github.com/novagaze/barforge/internal/config"
	"github.com/novagaze/barforge/internal/initializer"

	_ "github.com/go-sql-driver/mysql"
)

func main() {
	cfgPath := flag.String("config", "./config.json", "path to the JSON config file")
	flag.Parse()

	cfgFile, err := os.Open(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "not able to find config file:", *cfgPath)
		os.Exit(1)
	}
	var cfg config.Config
	if err = jsoniter.NewDecoder(cfgFile).Decode(&cfg); err != nil {
		cfgFile.Close()
		fmt.Fprintln(os.Stderr, "not able to parse JSON from config file:", *cfgPath)
		os.Exit(1)
	}
	cfgFile.Close()

	ctx, cancel := context.WithCancel(context.Background())
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-interrupt
		cancel()
	}()

	if err := initializer.Start(ctx, &cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
