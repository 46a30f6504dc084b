package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/obrc/blacklist/src/api/webserver"
	"github.com/obrc/blacklist/src/config"
	"github.com/obrc/blacklist/src/data"
	"github.com/obrc/blacklist/src/export"
	"github.com/obrc/blacklist/src/listing"
	"github.com/obrc/blacklist/src/voting"
)

var (
	modeFlag    = flag.String("mode", "token", "token|export|tickets")
	subjectFlag = flag.String("subject", "ops", "Token subject for token mode")
	ttlFlag     = flag.Duration("ttl", 24*time.Hour, "Token lifetime for token mode")
	listFlag    = flag.String("list", "blacklist", "blacklist|greylist|blacklist_coo|greylist_coo for export mode")
	outFlag     = flag.String("out", ".", "Output directory for export mode")
	statusFlag  = flag.String("status", "active", "active|completed|'' for tickets mode")
	timeoutFlag = flag.Duration("timeout", 30*time.Second, "Overall timeout")
)

func main() {
	log.SetFlags(0)
	flag.Parse()
	_ = godotenv.Load("cred.env", ".env")

	ctx, cancel := context.WithTimeout(context.Background(), *timeoutFlag)
	defer cancel()

	var err error
	switch strings.ToLower(*modeFlag) {
	case "token":
		err = runToken()
	case "export":
		err = runExport(ctx)
	case "tickets":
		err = runTickets(ctx)
	default:
		err = fmt.Errorf("unknown mode %q", *modeFlag)
	}
	if err != nil {
		log.Fatalf("obrc-admin: %v", err)
	}
}

// runToken prints a bearer token for the status API.
func runToken() error {
	cfg := config.LoadAPIConfig(nil)
	tok, err := webserver.IssueToken(*subjectFlag, []byte(cfg.JWTSecret), *ttlFlag)
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}

func parseList(name string) (listing.List, bool, error) {
	switch name {
	case listing.TablePersonBlacklist:
		return listing.Blacklist, false, nil
	case listing.TablePersonGreylist:
		return listing.Greylist, false, nil
	case listing.TableOrgBlacklist:
		return listing.Blacklist, true, nil
	case listing.TableOrgGreylist:
		return listing.Greylist, true, nil
	}
	return "", false, fmt.Errorf("unknown list %q", name)
}

func runExport(ctx context.Context) error {
	list, orgs, err := parseList(*listFlag)
	if err != nil {
		return err
	}
	dsn, err := data.GetMySQLDSN()
	if err != nil {
		return err
	}
	db, err := data.ConnectMySQL(dsn)
	if err != nil {
		return err
	}
	doc, err := export.Render(ctx, listing.NewStore(db), list, orgs, time.Now())
	if err != nil {
		return err
	}
	path := filepath.Join(*outFlag, doc.Name)
	if err := os.WriteFile(path, doc.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	log.Printf("wrote %d rows to %s", doc.Rows, path)
	return nil
}

func runTickets(ctx context.Context) error {
	dsn, err := data.GetMySQLDSN()
	if err != nil {
		return err
	}
	db, err := data.ConnectMySQL(dsn)
	if err != nil {
		return err
	}
	rows, err := voting.NewGormStore(db).Tickets(ctx, voting.Status(*statusFlag), 100)
	if err != nil {
		return err
	}
	for _, t := range rows {
		result := t.FinalResult
		if result == "" {
			result = "-"
		}
		fmt.Printf("%6d  %-15s  %-9s  %-20s  expires %s  %s\n",
			t.ID, t.TicketType, t.Status, t.TargetName, t.ExpiresAt.UTC().Format(time.RFC3339), result)
	}
	return nil
}
