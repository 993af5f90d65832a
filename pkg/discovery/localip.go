package discovery

import "net"

// DetectLocalIP finds the outbound interface address by opening a UDP
// "connection" to a public address. No packet is sent.
func DetectLocalIP() (string, error) {
	conn, err := net.Dial("udp4", "8.8.8.8:80")
	if err != nil {
		return "", ErrNoLocalIP
	}
	defer func() { _ = conn.Close() }()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", ErrNoLocalIP
	}

	return addr.IP.String(), nil
}
