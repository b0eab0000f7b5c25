package publisher

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"errors"
	"io"
	"log/slog"
	"math"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/jgoulah/thermonode/internal/retry"
	"github.com/jgoulah/thermonode/pkg/models"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeToken struct{ err error }

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Error() error                   { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic   string
	payload []byte
}

type fakeBroker struct {
	connected    bool
	failConnects int // connect attempts that fail before one succeeds
	connects     int
	publishErr   error
	published    []published
}

func (b *fakeBroker) IsConnected() bool { return b.connected }

func (b *fakeBroker) Connect() mqtt.Token {
	b.connects++
	if b.connects <= b.failConnects {
		return &fakeToken{err: errors.New("connection refused")}
	}
	b.connected = true
	return &fakeToken{}
}

func (b *fakeBroker) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	b.published = append(b.published, published{topic: topic, payload: payload.([]byte)})
	return &fakeToken{err: b.publishErr}
}

func (b *fakeBroker) Disconnect(uint) { b.connected = false }

func newTestPublisher(b *fakeBroker) *Publisher {
	return NewWithClient(b, "sensor/data", time.Minute, retry.Forever(0), discard)
}

var good = models.Reading{Temperature: 21.5, Humidity: 40.2, Date: "6/1/2024", Time: "14:05:30"}

func TestMaybePublishInterval(t *testing.T) {
	b := &fakeBroker{connected: true}
	p := newTestPublisher(b)
	p.lastPublish = 100000

	if ok, err := p.MaybePublish(100000+59999, good); ok || err != nil {
		t.Fatalf("at T+59999: got (%v, %v), want no attempt", ok, err)
	}
	if len(b.published) != 0 {
		t.Fatalf("published before the interval: %d", len(b.published))
	}

	if ok, err := p.MaybePublish(100000+60000, good); !ok || err != nil {
		t.Fatalf("at T+60000: got (%v, %v), want one attempt", ok, err)
	}
	if len(b.published) != 1 {
		t.Fatalf("published: got %d, want 1", len(b.published))
	}

	// Same iteration window again: no second publish.
	p.MaybePublish(100000+60001, good)
	if len(b.published) != 1 {
		t.Errorf("published: got %d, want 1", len(b.published))
	}
}

func TestMaybePublishPayload(t *testing.T) {
	b := &fakeBroker{connected: true}
	p := newTestPublisher(b)

	if _, err := p.MaybePublish(60000, good); err != nil {
		t.Fatal(err)
	}

	if b.published[0].topic != "sensor/data" {
		t.Errorf("topic: got %q", b.published[0].topic)
	}

	var got models.TelemetryMessage
	if err := json.Unmarshal(b.published[0].payload, &got); err != nil {
		t.Fatal(err)
	}
	if got != models.NewTelemetryMessage(good) {
		t.Errorf("payload: got %+v", got)
	}
	if !bytes.HasPrefix(b.published[0].payload, []byte(`{"temperature":`)) {
		t.Errorf("field order: %s", b.published[0].payload)
	}
}

func TestMaybePublishSkipsInvalidReading(t *testing.T) {
	b := &fakeBroker{connected: true}
	p := newTestPublisher(b)

	for _, r := range []models.Reading{
		{Temperature: math.NaN(), Humidity: 40},
		{Temperature: 21, Humidity: math.NaN()},
	} {
		if ok, err := p.MaybePublish(60000, r); ok || err != nil {
			t.Errorf("%+v: got (%v, %v)", r, ok, err)
		}
	}
	if len(b.published) != 0 {
		t.Fatalf("published invalid readings: %d", len(b.published))
	}

	// The skipped slot is still open for the next valid reading.
	if ok, _ := p.MaybePublish(60500, good); !ok {
		t.Error("valid reading after skip was not published")
	}
}

func TestMaybePublishError(t *testing.T) {
	b := &fakeBroker{connected: true, publishErr: errors.New("not connected")}
	p := newTestPublisher(b)

	ok, err := p.MaybePublish(60000, good)
	if !ok || err == nil {
		t.Fatalf("got (%v, %v), want attempt with error", ok, err)
	}

	// The interval restarts from the failed attempt.
	if ok, _ := p.MaybePublish(61000, good); ok {
		t.Error("retried before the interval elapsed")
	}
}

func TestEnsureConnectedRetries(t *testing.T) {
	b := &fakeBroker{failConnects: 4}
	p := newTestPublisher(b)

	if err := p.EnsureConnected(context.Background()); err != nil {
		t.Fatal(err)
	}
	if b.connects != 5 {
		t.Errorf("connect attempts: got %d, want 5", b.connects)
	}
	if p.Status() != models.Connected {
		t.Errorf("status: got %v", p.Status())
	}
}

func TestEnsureConnectedStopsOnCancel(t *testing.T) {
	b := &fakeBroker{failConnects: math.MaxInt}
	p := NewWithClient(b, "sensor/data", time.Minute, retry.Forever(time.Hour), discard)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := p.EnsureConnected(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("got %v, want deadline exceeded", err)
	}
}

func TestServiceReconnects(t *testing.T) {
	b := &fakeBroker{connected: true}
	p := newTestPublisher(b)

	if err := p.Service(context.Background()); err != nil {
		t.Fatal(err)
	}
	if b.connects != 0 {
		t.Errorf("connected link was reconnected")
	}

	b.connected = false
	if err := p.Service(context.Background()); err != nil {
		t.Fatal(err)
	}
	if b.connects != 1 || !b.connected {
		t.Errorf("link not re-established: connects=%d", b.connects)
	}
}

type fakeMessage struct {
	mqtt.Message
	topic   string
	payload []byte
}

func (m fakeMessage) Topic() string   { return m.topic }
func (m fakeMessage) Payload() []byte { return m.payload }

func TestHandleMessageOnlyLogs(t *testing.T) {
	var buf bytes.Buffer
	b := &fakeBroker{connected: true}
	p := NewWithClient(b, "sensor/data", time.Minute, retry.Forever(0), slog.New(slog.NewTextHandler(&buf, nil)))

	p.HandleMessage(nil, fakeMessage{topic: "sensor/cmd", payload: []byte("reboot")})

	if !strings.Contains(buf.String(), "sensor/cmd") || !strings.Contains(buf.String(), "reboot") {
		t.Errorf("log: %q", buf.String())
	}
	if len(b.published) != 0 || b.connects != 0 {
		t.Error("inbound message triggered broker activity")
	}
}

func writeTestPKI(t *testing.T) (certFile, keyFile, caFile string) {
	t.Helper()
	dir := t.TempDir()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "thermonode-test"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatal(err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	certFile = filepath.Join(dir, "device.crt")
	keyFile = filepath.Join(dir, "device.key")
	caFile = filepath.Join(dir, "ca.pem")
	for path, data := range map[string][]byte{certFile: certPEM, keyFile: keyPEM, caFile: certPEM} {
		if err := os.WriteFile(path, data, 0600); err != nil {
			t.Fatal(err)
		}
	}
	return certFile, keyFile, caFile
}

func TestNewTLSConfig(t *testing.T) {
	certFile, keyFile, caFile := writeTestPKI(t)

	conf, err := NewTLSConfig(certFile, keyFile, caFile)
	if err != nil {
		t.Fatalf("NewTLSConfig: %v", err)
	}
	if len(conf.Certificates) != 1 {
		t.Errorf("certificates: got %d, want 1", len(conf.Certificates))
	}
	if conf.RootCAs == nil {
		t.Error("no root CAs")
	}
}

func TestNewTLSConfigBadCA(t *testing.T) {
	certFile, keyFile, _ := writeTestPKI(t)
	bad := filepath.Join(t.TempDir(), "ca.pem")
	os.WriteFile(bad, []byte("not a certificate"), 0600)

	if _, err := NewTLSConfig(certFile, keyFile, bad); err == nil {
		t.Error("expected error for unparseable CA")
	}
	if _, err := NewTLSConfig(certFile, filepath.Join(t.TempDir(), "missing.key"), bad); err == nil {
		t.Error("expected error for missing key")
	}
}
