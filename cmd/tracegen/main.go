// Command tracegen emits a stream of synthetic traces and correlated
// logs against a collector, for exercising the SDK end to end.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lumenwork/telemetry"
	"github.com/lumenwork/telemetry/logs"
)

func main() {
	endpoint := flag.String("endpoint", "localhost:4317", "Collector endpoint")
	protocol := flag.String("protocol", "grpc", "Export protocol: grpc or http-protobuf")
	service := flag.String("service", "tracegen", "Service name on exported telemetry")
	interval := flag.Duration("interval", time.Second, "Delay between generated requests")
	echo := flag.Bool("echo", false, "Echo finished records to stdout as JSON lines")
	flag.Parse()

	proto, err := telemetry.ParseProtocol(*protocol)
	if err != nil {
		log.Fatalf("Invalid protocol: %v", err)
	}

	cfg := telemetry.LoadOrDefault()
	cfg.ServiceName = *service
	cfg.Endpoint = *endpoint
	cfg.Protocol = proto
	cfg.ConsoleEcho = *echo

	if err := telemetry.Initialize(*cfg); err != nil {
		log.Fatalf("Failed to initialize telemetry: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	log.Printf("Generating traces for %q against %s (%s)", *service, *endpoint, proto)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	seq := 0
	for {
		select {
		case <-sigChan:
			log.Println("Shutting down, draining buffered telemetry...")
			ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := telemetry.Shutdown(ctx); err != nil {
				log.Printf("Error during shutdown: %v", err)
			}
			return
		case <-ticker.C:
			seq++
			simulateRequest(seq)
		}
	}
}

// simulateRequest produces one request-shaped trace with nested work
// and correlated logs.
func simulateRequest(seq int) {
	root := telemetry.StartSpan("handle-request", telemetry.KindServer)
	telemetry.SetTag(root, "http.method", "GET")
	telemetry.SetTag(root, "request.seq", fmt.Sprintf("%d", seq))
	telemetry.WriteLog(telemetry.SeverityInformation, "request accepted")

	query := telemetry.StartSpan("query-store", telemetry.KindClient)
	telemetry.SetTag(query, "db.system", "postgres")
	time.Sleep(time.Duration(rand.Intn(20)) * time.Millisecond)

	if rand.Intn(10) == 0 {
		err := fmt.Errorf("store unavailable for request %d", seq)
		query.RecordError(err)
		telemetry.WriteLog(telemetry.SeverityError, "query failed", logs.WithError(err))
	} else {
		telemetry.WriteLog(telemetry.SeverityDebug, "query returned")
	}
	telemetry.StopSpan(query)

	render := telemetry.StartSpan("render-response", telemetry.KindInternal)
	time.Sleep(time.Duration(rand.Intn(5)) * time.Millisecond)
	telemetry.StopSpan(render)

	telemetry.StopSpan(root)
}
