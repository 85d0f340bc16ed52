package message

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// DefaultPort is the default CoAP port over UDP.
const DefaultPort = 5683

// URI is a coap URI decomposed into the parts carried by Uri-* options.
type URI struct {
	Host  string
	Port  uint16
	Path  []string
	Query []string
}

// ParseURI splits a coap URI into host, port, path segments and query terms.
// Path segments and query terms are percent-decoded; empty ones are dropped.
func ParseURI(raw string) (URI, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return URI{}, fmt.Errorf("%w: %v", ErrInvalidURI, err)
	}
	if u.Scheme != "coap" {
		return URI{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURI, u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return URI{}, fmt.Errorf("%w: missing host", ErrInvalidURI)
	}
	port := uint16(DefaultPort)
	if p := u.Port(); p != "" {
		v, err := strconv.ParseUint(p, 10, 16)
		if err != nil || v == 0 {
			return URI{}, fmt.Errorf("%w: invalid port %q", ErrInvalidURI, p)
		}
		port = uint16(v)
	}
	path, err := splitSegments(u.EscapedPath(), "/")
	if err != nil {
		return URI{}, err
	}
	query, err := splitSegments(u.RawQuery, "&")
	if err != nil {
		return URI{}, err
	}
	return URI{
		Host:  host,
		Port:  port,
		Path:  path,
		Query: query,
	}, nil
}

func splitSegments(value, sep string) ([]string, error) {
	var r []string
	for _, s := range strings.Split(value, sep) {
		if s == "" {
			continue
		}
		v, err := url.PathUnescape(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidURI, err)
		}
		r = append(r, v)
	}
	return r, nil
}

func splitOptions(id OptionID, value, sep string) (Options, error) {
	segments, err := splitSegments(value, sep)
	if err != nil {
		return nil, err
	}
	var options Options
	for _, s := range segments {
		options, err = options.AddString(id, s)
		if err != nil {
			return nil, err
		}
	}
	return options, nil
}

// SplitPath divides a '/' separated path into one Uri-Path option per segment.
func SplitPath(path string) (Options, error) {
	return splitOptions(URIPath, path, "/")
}

// SplitQuery divides a '&' separated query into one Uri-Query option per term.
func SplitQuery(query string) (Options, error) {
	return splitOptions(URIQuery, query, "&")
}

// Options returns the Uri-Host, Uri-Port, Uri-Path and Uri-Query options of the URI.
// Uri-Host is emitted only for a host name, Uri-Port only for a non default port.
func (u URI) Options() (Options, error) {
	var options Options
	var err error
	if net.ParseIP(u.Host) == nil {
		options, err = options.AddString(URIHost, u.Host)
		if err != nil {
			return nil, err
		}
	}
	if u.Port != DefaultPort {
		options = options.AddUint32(URIPort, uint32(u.Port))
	}
	for _, s := range u.Path {
		if options, err = options.AddString(URIPath, s); err != nil {
			return nil, err
		}
	}
	for _, s := range u.Query {
		if options, err = options.AddString(URIQuery, s); err != nil {
			return nil, err
		}
	}
	return options, nil
}

// Addr returns host:port suitable for address resolution.
func (u URI) Addr() string {
	return net.JoinHostPort(u.Host, strconv.FormatUint(uint64(u.Port), 10))
}

// BuildURIOptions converts a URI string into request options. In proxy mode
// the whole string is carried unchanged in a single Proxy-Uri option.
func BuildURIOptions(raw string, proxy bool) (Options, error) {
	if proxy {
		if raw == "" {
			return nil, fmt.Errorf("%w: empty", ErrInvalidURI)
		}
		return Options{}.AddString(ProxyURI, raw)
	}
	u, err := ParseURI(raw)
	if err != nil {
		return nil, err
	}
	return u.Options()
}
