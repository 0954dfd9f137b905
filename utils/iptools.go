package utils

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"syscall"
)

// DefaultServerPort is the first port tried for the media server.
const DefaultServerPort = 3500

// URLtoListenIPandPort for a given receiver URL or host:port, find the
// local IP that reaches it and a free port to listen to.
func URLtoListenIPandPort(u string) (string, error) {
	if !strings.Contains(u, "://") {
		u = "http://" + u
	}

	parsedURL, err := url.Parse(u)
	if err != nil {
		return "", fmt.Errorf("URLtoListenIPandPort parse error: %w", err)
	}

	callURL := parsedURL.Host
	if parsedURL.Port() == "" {
		switch parsedURL.Scheme {
		case "http":
			callURL = callURL + ":80"
		case "https":
			callURL = callURL + ":443"
		}
	}

	conn, err := net.Dial("udp", callURL)
	if err != nil {
		return "", fmt.Errorf("URLtoListenIPandPort UDP call error: %w", err)
	}
	defer conn.Close()

	ipToListen, _, err := net.SplitHostPort(conn.LocalAddr().String())
	if err != nil {
		return "", fmt.Errorf("URLtoListenIPandPort local address error: %w", err)
	}

	portToListen, err := checkAndPickPort(ipToListen, DefaultServerPort)
	if err != nil {
		return "", fmt.Errorf("URLtoListenIPandPort port error: %w", err)
	}

	return net.JoinHostPort(ipToListen, portToListen), nil
}

func checkAndPickPort(ip string, port int) (string, error) {
	const maxAttempts = 1000
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		conn, err := net.Listen("tcp", net.JoinHostPort(ip, strconv.Itoa(port)))
		if err != nil {
			if errors.Is(err, syscall.EADDRINUSE) {
				if attempt == maxAttempts {
					break
				}
				port++
				continue
			}

			return "", fmt.Errorf("port pick error: %w", err)
		}
		conn.Close()
		return strconv.Itoa(port), nil
	}

	return "", fmt.Errorf("port pick error. Exceeded maximum attempts")
}
