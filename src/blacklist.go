package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/obrc/blacklist/src/actions"
	"github.com/obrc/blacklist/src/data"
	"github.com/obrc/blacklist/src/listing"
	"github.com/obrc/blacklist/src/voting"
)

func main() {
	for _, f := range []string{"cred.env", ".env"} {
		if err := godotenv.Load(f); err == nil {
			log.Printf("config: loaded %s", f)
		}
	}

	dsn, err := data.GetMySQLDSN()
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	db, err := data.ConnectMySQL(dsn)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := listing.NewStore(db).AutoMigrate(); err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := voting.NewGormStore(db).AutoMigrate(); err != nil {
		log.Fatalf("db: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager, err := actions.StartAll(ctx, db)
	if err != nil {
		log.Fatalf("actions start: %v", err)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer stopCancel()
	manager.Stop(stopCtx)
	cancel()
}
