// Command paywatch follows one push payment through the public status
// endpoint until it settles or the poll budget runs out.
//
//	paywatch -api http://localhost:8080/api/v1 -token $JWT ws_CO_191220191020363925
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/nablus1/TurfArena-booking/internal/pkg/poller"
)

func main() {
	api := flag.String("api", envOr("TURFARENA_API", "http://localhost:8080/api/v1"), "API base URL")
	token := flag.String("token", os.Getenv("TURFARENA_TOKEN"), "bearer token of the payer")
	attempts := flag.Int("attempts", poller.DefaultMaxAttempts, "maximum status checks")
	interval := flag.Duration("interval", poller.DefaultInterval, "delay between checks")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: paywatch [flags] CHECKOUT_REQUEST_ID")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	p := poller.New(*attempts, *interval)
	p.OnAttempt = func(n int, s poller.Snapshot, err error) {
		if err != nil {
			log.Printf("attempt=%d err=%v", n, err)
			return
		}
		log.Printf("attempt=%d status=%s booking_status=%s", n, s.Status, s.BookingStatus)
	}

	res, err := p.Poll(ctx, &poller.HTTPFetcher{
		BaseURL:           *api,
		Token:             *token,
		CheckoutRequestID: flag.Arg(0),
	})
	if err != nil {
		log.Printf("stopped: %v", err)
	}

	out, _ := json.MarshalIndent(res.Last, "", "  ")
	fmt.Printf("outcome=%s attempts=%d\n%s\n", res.Outcome, res.Attempts, out)
	if res.Outcome != poller.OutcomeCompleted {
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
