// Package discovery advertises the fallback relay on the local network and
// finds it from clients, over multicast DNS.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

const (
	// Service is the mDNS service type of the relay.
	Service = "_syncradio._tcp"
	domain  = "local"

	// DefaultTimeout bounds a lookup.
	DefaultTimeout = 3 * time.Second

	defaultPath = "/ws"
)

// ErrNotFound is returned when no relay answered.
var ErrNotFound = errors.New("no relay found on the local network")

// Relay is a discovered relay server.
type Relay struct {
	Name string
	Host string
	Port int
	Path string // websocket endpoint path
}

// Addr returns host:port.
func (r Relay) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// URL returns the websocket URL of the relay.
func (r Relay) URL() string {
	return "ws://" + r.Addr() + r.Path
}

// Advertiser answers mDNS queries for a relay until closed.
type Advertiser struct {
	server *mdns.Server
}

// Advertise publishes the relay listening on port under instance name.
func Advertise(name string, port int, logger *slog.Logger) (*Advertiser, error) {
	if logger == nil {
		logger = slog.Default()
	}
	host, err := hostname()
	if err != nil {
		return nil, err
	}
	txt := []string{"path=" + defaultPath, "version=1"}
	svc, err := mdns.NewMDNSService(name, Service, "", host, port, nil, txt)
	if err != nil {
		return nil, fmt.Errorf("mdns service: %w", err)
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: svc})
	if err != nil {
		return nil, fmt.Errorf("mdns server: %w", err)
	}
	logger.Info("advertising relay", "service", Service, "name", name, "host", host, "port", port)
	return &Advertiser{server: server}, nil
}

// Close stops answering queries.
func (a *Advertiser) Close() error {
	return a.server.Shutdown()
}

// Lookup queries the local network for relays. It returns once timeout
// elapses or ctx is done, whichever comes first.
func Lookup(ctx context.Context, timeout time.Duration) ([]Relay, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries := make(chan *mdns.ServiceEntry, 16)
	found := make(chan []Relay, 1)
	go func() {
		var relays []Relay
		seen := map[string]bool{}
		for e := range entries {
			r, ok := fromEntry(e)
			if !ok || seen[r.Addr()] {
				continue
			}
			seen[r.Addr()] = true
			relays = append(relays, r)
		}
		found <- relays
	}()

	params := mdns.DefaultParams(Service)
	params.Domain = domain
	params.Timeout = timeout
	params.Entries = entries
	err := mdns.Query(params)
	close(entries)
	relays := <-found
	if err != nil {
		return nil, fmt.Errorf("mdns query: %w", err)
	}
	return relays, nil
}

// First returns the first relay that answers.
func First(ctx context.Context, timeout time.Duration) (Relay, error) {
	relays, err := Lookup(ctx, timeout)
	if err != nil {
		return Relay{}, err
	}
	if len(relays) == 0 {
		return Relay{}, ErrNotFound
	}
	return relays[0], nil
}

// fromEntry converts an answer. Entries for other services and entries
// without an IPv4 address are skipped.
func fromEntry(e *mdns.ServiceEntry) (Relay, bool) {
	if e == nil || e.AddrV4 == nil || e.Port <= 0 {
		return Relay{}, false
	}
	if !strings.Contains(e.Name, Service) {
		return Relay{}, false
	}
	r := Relay{
		Name: instanceName(e.Name),
		Host: e.AddrV4.String(),
		Port: e.Port,
		Path: defaultPath,
	}
	for _, field := range e.InfoFields {
		if p, ok := strings.CutPrefix(field, "path="); ok && strings.HasPrefix(p, "/") {
			r.Path = p
		}
	}
	return r, true
}

// instanceName strips the service and domain from a full entry name.
func instanceName(full string) string {
	name, _, _ := strings.Cut(full, "."+Service)
	return strings.ReplaceAll(name, `\ `, " ")
}

func hostname() (string, error) {
	host, err := os.Hostname()
	if err != nil {
		return "", err
	}
	if !strings.HasSuffix(host, ".") {
		host += "."
	}
	return host, nil
}
