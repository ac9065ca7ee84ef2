package geoip

import (
	"errors"
	"net"
	"testing"

	"github.com/oschwald/geoip2-golang"
)

type fakeReader struct {
	codes  map[string]string
	err    error
	calls  int
	closed bool
}

func (f *fakeReader) Country(ip net.IP) (*geoip2.Country, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	rec := &geoip2.Country{}
	rec.Country.IsoCode = f.codes[ip.String()]
	return rec, nil
}

func (f *fakeReader) Close() error {
	f.closed = true
	return nil
}

func TestNewResolverEmptyPath(t *testing.T) {
	r, err := NewResolver("  ")
	if err != nil || r != nil {
		t.Fatalf("NewResolver(\"\") = %v, %v; want nil, nil", r, err)
	}
	if Lookup(r) != nil {
		t.Fatal("Lookup of nil resolver should be nil")
	}
}

func TestNewResolverMissingFile(t *testing.T) {
	if _, err := NewResolver("/nonexistent/GeoLite2-Country.mmdb"); err == nil {
		t.Fatal("expected error for missing database")
	}
}

func TestCountryCode(t *testing.T) {
	reader := &fakeReader{codes: map[string]string{"190.2.3.4": "AR"}}
	r := newResolver(reader)

	tests := []struct {
		name    string
		ip      string
		want    string
		wantErr bool
	}{
		{name: "public address", ip: "190.2.3.4", want: "AR"},
		{name: "unknown public address", ip: "8.8.8.8", want: ""},
		{name: "private address skipped", ip: "10.1.2.3", want: ""},
		{name: "garbage", ip: "not-an-ip", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := r.CountryCode(tc.ip)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if got != tc.want {
				t.Fatalf("CountryCode(%s) = %q, want %q", tc.ip, got, tc.want)
			}
		})
	}
	if reader.calls != 2 {
		t.Fatalf("reader calls = %d, want 2 (private and invalid addresses skip the database)", reader.calls)
	}
}

func TestCountryCodeCachesAnswers(t *testing.T) {
	reader := &fakeReader{codes: map[string]string{"190.2.3.4": "AR"}}
	r := newResolver(reader)
	for i := 0; i < 3; i++ {
		if got, _ := r.CountryCode("190.2.3.4"); got != "AR" {
			t.Fatalf("lookup %d = %q", i, got)
		}
	}
	if reader.calls != 1 {
		t.Fatalf("reader calls = %d, want 1", reader.calls)
	}
	if err := r.Close(); err != nil || !reader.closed {
		t.Fatalf("Close: err=%v closed=%v", err, reader.closed)
	}
}

func TestCountryCodeReaderError(t *testing.T) {
	r := newResolver(&fakeReader{err: errors.New("corrupt")})
	if _, err := r.CountryCode("8.8.8.8"); err == nil {
		t.Fatal("expected reader error")
	}
}

func TestUninitializedResolver(t *testing.T) {
	var r *Resolver
	if _, err := r.CountryCode("8.8.8.8"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close on nil resolver: %v", err)
	}
}

func TestRoutable(t *testing.T) {
	tests := map[string]bool{
		"8.8.8.8":     true,
		"127.0.0.1":   false,
		"192.168.0.9": false,
		"169.254.1.1": false,
		"::1":         false,
		"2001:4860::": true,
	}
	for ip, want := range tests {
		if got := routable(net.ParseIP(ip)); got != want {
			t.Fatalf("routable(%s) = %v, want %v", ip, got, want)
		}
	}
}
