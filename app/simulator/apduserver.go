package main

import (
	"bufio"
	"encoding/hex"
	"errors"
	"log/slog"
	"net"
	"strings"

	"github.com/mavryk-network/mvsign/apdu"
	"github.com/mavryk-network/mvsign/wallet"
)

// serveAPDU accepts clients on ln and runs their frames against the
// device, one hex encoded frame per line, one hex encoded reply per
// line. Clients take turns per frame: the device serializes exchanges
// itself and an exchange can park on the simulator screen.
func serveAPDU(ln net.Listener, dev *wallet.Device, log *slog.Logger, onExchange func(apdu.Command, apdu.Response)) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				log.Error("accept failed", "error", err.Error())
			}
			return
		}
		go serveConn(conn, dev, log, onExchange)
	}
}

func serveConn(conn net.Conn, dev *wallet.Device, log *slog.Logger, onExchange func(apdu.Command, apdu.Response)) {
	defer conn.Close()
	log.Debug("client connected", "remote", conn.RemoteAddr().String())

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		rsp := runFrame(line, dev, onExchange)
		if _, err := conn.Write(append([]byte(hex.EncodeToString(rsp)), '\n')); err != nil {
			log.Warn("write failed", "error", err.Error())
			return
		}
	}
	log.Debug("client disconnected", "remote", conn.RemoteAddr().String())
}

func runFrame(line string, dev *wallet.Device, onExchange func(apdu.Command, apdu.Response)) []byte {
	raw, err := hex.DecodeString(line)
	if err != nil {
		return apdu.Response{Status: apdu.StatusWrongLength}.Encode()
	}
	cmd, err := apdu.DecodeCommand(raw)
	if err != nil {
		return apdu.Response{Status: apdu.StatusWrongLength}.Encode()
	}

	rsp := dev.Exchange(cmd)
	if onExchange != nil {
		onExchange(cmd, rsp)
	}
	return rsp.Encode()
}
