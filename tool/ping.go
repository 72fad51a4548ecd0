package tool

import (
	"context"
	"fmt"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// PingResult summarises an ICMP reachability check of the fleet server.
type PingResult struct {
	Host        string        `json:"host"`
	PacketsSent int           `json:"packetsSent"`
	PacketsRecv int           `json:"packetsRecv"`
	PacketLoss  float64       `json:"packetLoss"`
	AvgRtt      time.Duration `json:"avgRtt"`
}

// PingHost sends count unprivileged echo requests to host.
func PingHost(ctx context.Context, host string, count int, timeout time.Duration) (PingResult, error) {
	result := PingResult{Host: host}
	pinger, err := probing.NewPinger(host)
	if err != nil {
		return result, fmt.Errorf("failed to create pinger for %s: %w", host, err)
	}
	if count <= 0 {
		count = 3
	}
	pinger.Count = count
	pinger.Timeout = timeout
	pinger.SetPrivileged(false)
	if err := pinger.RunWithContext(ctx); err != nil {
		return result, fmt.Errorf("ping %s failed: %w", host, err)
	}
	stats := pinger.Statistics()
	result.PacketsSent = stats.PacketsSent
	result.PacketsRecv = stats.PacketsRecv
	result.PacketLoss = stats.PacketLoss
	result.AvgRtt = stats.AvgRtt
	return result, nil
}
