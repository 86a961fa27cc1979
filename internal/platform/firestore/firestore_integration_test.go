//go:build integration

package firestore_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	pconfig "github.com/cafeluna/api/internal/platform/config"
	pfirestore "github.com/cafeluna/api/internal/platform/firestore"
)

const emulatorImage = "gcr.io/google.com/cloudsdktool/cloud-sdk:emulators"

type beverageDoc struct {
	Name       string `firestore:"name"`
	PriceCents int64  `firestore:"price_cents"`
	Available  bool   `firestore:"available"`
}

type counterDoc struct {
	Value int64 `firestore:"value"`
}

func TestProviderAgainstEmulator(t *testing.T) {
	endpoint := startEmulator(t)

	provider := pfirestore.NewProvider(pconfig.FirestoreConfig{
		ProjectID:    "cafeluna-test",
		EmulatorHost: endpoint,
	})
	t.Cleanup(func() {
		_ = provider.Close(context.Background())
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if _, err := provider.Client(ctx); err != nil {
		t.Fatalf("expected firestore client, got error: %v", err)
	}

	beverages := pfirestore.NewBaseRepository[beverageDoc](provider, "beverages", nil, nil)

	if _, err := beverages.Set(ctx, "bev_cappuccino", beverageDoc{Name: "Cappuccino", PriceCents: 1200, Available: true}); err != nil {
		t.Fatalf("set beverage: %v", err)
	}

	doc, err := beverages.Get(ctx, "bev_cappuccino")
	if err != nil {
		t.Fatalf("get beverage: %v", err)
	}
	if doc.ID != "bev_cappuccino" || doc.Data.Name != "Cappuccino" || doc.Data.PriceCents != 1200 {
		t.Fatalf("unexpected beverage document: %#v", doc)
	}
	if doc.UpdateTime.IsZero() {
		t.Fatal("expected the update time to be populated")
	}

	// Menu price change through a partial update.
	if _, err := beverages.Update(ctx, "bev_cappuccino", []firestore.Update{{Path: "price_cents", Value: int64(1350)}}); err != nil {
		t.Fatalf("update price: %v", err)
	}
	doc, err = beverages.Get(ctx, "bev_cappuccino")
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if doc.Data.PriceCents != 1350 {
		t.Fatalf("price_cents = %d, want 1350", doc.Data.PriceCents)
	}

	listed, err := beverages.Query(ctx, nil)
	if err != nil {
		t.Fatalf("query beverages: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected 1 beverage, got %d", len(listed))
	}

	// A missing beverage must classify as not-found, not as a raw gRPC error.
	if _, err := beverages.Get(ctx, "bev_missing"); err == nil {
		t.Fatal("expected not found error")
	} else {
		var classifier interface{ IsNotFound() bool }
		if !errors.As(err, &classifier) || !classifier.IsNotFound() {
			t.Fatalf("expected not-found classification, got %v", err)
		}
	}

	// The order-number counter is a transactional read-modify-write; two
	// sequential increments through RunTransaction must observe each other.
	counters := pfirestore.NewBaseRepository[counterDoc](provider, "counters", nil, nil)
	if _, err := counters.Set(ctx, "orders", counterDoc{Value: 41}); err != nil {
		t.Fatalf("seed counter: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
			ref, err := counters.DocumentRef(ctx, "orders")
			if err != nil {
				return err
			}
			snap, err := tx.Get(ref)
			if err != nil {
				return err
			}
			var counter counterDoc
			if err := snap.DataTo(&counter); err != nil {
				return err
			}
			counter.Value++
			return tx.Set(ref, counter)
		}); err != nil {
			t.Fatalf("counter transaction %d: %v", i, err)
		}
	}
	counter, err := counters.Get(ctx, "orders")
	if err != nil {
		t.Fatalf("get counter: %v", err)
	}
	if counter.Data.Value != 43 {
		t.Fatalf("counter value = %d, want 43", counter.Data.Value)
	}

	// Cancellation propagates out of the transaction helper.
	cancelled, cancelNow := context.WithCancel(context.Background())
	cancelNow()
	if err := provider.RunTransaction(cancelled, func(context.Context, *firestore.Transaction) error {
		return nil
	}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

// startEmulator boots the Firestore emulator in docker and returns its
// host:port, skipping the test when docker is unavailable.
func startEmulator(t *testing.T) string {
	t.Helper()

	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not available: " + err.Error())
	}
	infoCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := exec.CommandContext(infoCtx, "docker", "info").Run(); err != nil {
		t.Skip("docker daemon unavailable: " + err.Error())
	}

	port := freeLocalPort(t)
	out, err := exec.Command("docker",
		"run", "-d", "--rm",
		"-p", fmt.Sprintf("%d:8080", port),
		emulatorImage,
		"gcloud", "beta", "emulators", "firestore", "start",
		"--host-port=0.0.0.0:8080", "--quiet",
	).CombinedOutput()
	if err != nil {
		t.Fatalf("start firestore emulator: %v - %s", err, out)
	}
	containerID := strings.TrimSpace(string(out))
	if containerID == "" {
		t.Fatal("docker returned an empty container id")
	}
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = exec.CommandContext(stopCtx, "docker", "stop", containerID).Run()
	})

	endpoint := fmt.Sprintf("127.0.0.1:%d", port)
	awaitEndpoint(t, endpoint, 30*time.Second)
	return endpoint
}

func freeLocalPort(t *testing.T) int {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("allocate port: %v", err)
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port
}

func awaitEndpoint(t *testing.T, endpoint string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", endpoint, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		lastErr = err
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("emulator did not become ready: %v", lastErr)
}
