// Package hwid derives a stable hardware identifier for license binding.
//
// The platform machine UUID is preferred. When it cannot be read the probe
// falls back to the first usable MAC address and, failing that, to a hash of
// the hostname. The outcome records which of the two paths produced the value
// so callers can warn that a fallback id may change with the network setup.
package hwid

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Source string

const (
	SourcePrimary  Source = "primary"
	SourceFallback Source = "fallback"
)

// Fingerprint is the result of a probe.
type Fingerprint struct {
	Value  string
	Source Source
}

// DefaultCommandTimeout bounds every external command the probe runs.
const DefaultCommandTimeout = 3 * time.Second

var errNoPrimaryID = errors.New("no platform machine id")

var linuxIDFiles = []string{
	"/sys/class/dmi/id/product_uuid",
	"/etc/machine-id",
	"/var/lib/dbus/machine-id",
}

// Prober reads hardware identifiers. The function fields default to the real
// operating system calls and are replaced in tests.
type Prober struct {
	GOOS           string
	CommandTimeout time.Duration

	readFile   func(name string) ([]byte, error)
	runCommand func(ctx context.Context, name string, args ...string) ([]byte, error)
	interfaces func() ([]net.Interface, error)
	hostname   func() (string, error)
}

func NewProber() *Prober {
	return &Prober{
		GOOS:           runtime.GOOS,
		CommandTimeout: DefaultCommandTimeout,
		readFile:       os.ReadFile,
		runCommand: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		},
		interfaces: net.Interfaces,
		hostname:   os.Hostname,
	}
}

// Probe runs the default prober.
func Probe(ctx context.Context) Fingerprint {
	return NewProber().Probe(ctx)
}

// Probe never fails: the fallback chain always ends with a value.
func (p *Prober) Probe(ctx context.Context) Fingerprint {
	if id, err := p.primary(ctx); err == nil {
		return Fingerprint{Value: id, Source: SourcePrimary}
	}
	return Fingerprint{Value: p.fallback(), Source: SourceFallback}
}

func (p *Prober) primary(ctx context.Context) (string, error) {
	switch p.GOOS {
	case "linux":
		for _, name := range linuxIDFiles {
			raw, err := p.readFile(name)
			if err != nil {
				continue
			}
			if id, ok := normalizeID(string(raw)); ok {
				return id, nil
			}
		}
		return "", errNoPrimaryID
	case "darwin":
		out, err := p.run(ctx, "ioreg", "-rd1", "-c", "IOPlatformExpertDevice")
		if err != nil {
			return "", err
		}
		return parseIOReg(out)
	case "windows":
		out, err := p.run(ctx, "wmic", "csproduct", "get", "UUID")
		if err != nil {
			return "", err
		}
		return parseWMIC(out)
	}
	return "", fmt.Errorf("%w: unsupported platform %s", errNoPrimaryID, p.GOOS)
}

func (p *Prober) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, p.CommandTimeout)
	defer cancel()
	return p.runCommand(ctx, name, args...)
}

// parseIOReg extracts IOPlatformUUID from `ioreg -rd1 -c IOPlatformExpertDevice`.
func parseIOReg(out []byte) (string, error) {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		if !strings.Contains(line, `"IOPlatformUUID"`) {
			continue
		}
		_, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		if id, ok := normalizeID(strings.Trim(strings.TrimSpace(value), `"`)); ok {
			return id, nil
		}
	}
	return "", errNoPrimaryID
}

// parseWMIC reads the value below the UUID header of `wmic csproduct get UUID`.
func parseWMIC(out []byte) (string, error) {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.EqualFold(line, "UUID") {
			continue
		}
		if id, ok := normalizeID(line); ok {
			return id, nil
		}
	}
	return "", errNoPrimaryID
}

// normalizeID canonicalises a machine UUID to lower-case dashed form.
// Firmware placeholders made of only zeros or only Fs are rejected.
func normalizeID(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", false
	}
	if placeholder(id) {
		return "", false
	}
	return id.String(), true
}

func placeholder(id uuid.UUID) bool {
	zeros, ones := true, true
	for _, b := range id {
		zeros = zeros && b == 0x00
		ones = ones && b == 0xff
	}
	return zeros || ones
}

func (p *Prober) fallback() string {
	if ifaces, err := p.interfaces(); err == nil {
		if mac, ok := firstMAC(ifaces); ok {
			return macToDecimal(mac)
		}
	}
	host, err := p.hostname()
	if err != nil || strings.TrimSpace(host) == "" {
		host = "unknown-host"
	}
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(host))))
	return hex.EncodeToString(sum[:16])
}

// firstMAC picks the first non-loopback interface with a 48-bit, non-zero
// hardware address, preferring interfaces that are up.
func firstMAC(ifaces []net.Interface) (net.HardwareAddr, bool) {
	usable := func(iface net.Interface) bool {
		if iface.Flags&net.FlagLoopback != 0 || len(iface.HardwareAddr) != 6 {
			return false
		}
		for _, b := range iface.HardwareAddr {
			if b != 0 {
				return true
			}
		}
		return false
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp != 0 && usable(iface) {
			return iface.HardwareAddr, true
		}
	}
	for _, iface := range ifaces {
		if usable(iface) {
			return iface.HardwareAddr, true
		}
	}
	return nil, false
}

func macToDecimal(mac net.HardwareAddr) string {
	var buf [8]byte
	copy(buf[2:], mac)
	return strconv.FormatUint(binary.BigEndian.Uint64(buf[:]), 10)
}
