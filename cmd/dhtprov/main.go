// Command dhtprov provisions WiFi credentials on a node over its USB serial
// console. Start it, then reset the node: the credentials are typed as soon as
// the node prompts for them and the node stores them in flash.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.bug.st/serial"

	"github.com/teamrocket/dhtnode/credentials"
)

const envPassword = "DHTNODE_PASSWORD"

func main() {
	var (
		portFlag   = flag.String("p", "", "Serial port (e.g., COM3 or /dev/ttyACM0); first port found if empty")
		ssidFlag   = flag.String("ssid", "", "Network name")
		passFlag   = flag.String("pass", "", "Network password; read from "+envPassword+" if empty")
		baudFlag   = flag.Int("baud", 115200, "Baud rate")
		waitFlag   = flag.Duration("wait", time.Minute, "How long to wait for the node prompt")
		followFlag = flag.Duration("follow", 5*time.Second, "How long to echo node output after sending")
		noWaitFlag = flag.Bool("now", false, "Send immediately without waiting for the prompt")
	)
	flag.Parse()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	pass := *passFlag
	if pass == "" {
		pass = os.Getenv(envPassword)
	}
	creds := credentials.Credentials{SSID: *ssidFlag, Password: pass}
	if err := creds.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "invalid credentials:", err)
		os.Exit(2)
	}

	portName := *portFlag
	if portName == "" {
		ports, err := serial.GetPortsList()
		if err != nil || len(ports) == 0 {
			fmt.Fprintln(os.Stderr, "no serial port found, use -p")
			os.Exit(1)
		}
		portName = ports[0]
	}
	port, err := serial.Open(portName, &serial.Mode{BaudRate: *baudFlag})
	if err != nil {
		logger.Error("prov:open", slog.String("port", portName), slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer port.Close()
	if err := port.SetReadTimeout(100 * time.Millisecond); err != nil {
		logger.Error("prov:timeout", slog.String("err", err.Error()))
		os.Exit(1)
	}
	logger.Info("prov:open", slog.String("port", portName), slog.String("ssid", creds.SSID))

	if !*noWaitFlag {
		logger.Info("prov:waiting", slog.Duration("wait", *waitFlag))
		err = waitPrompt(port, os.Stdout, time.Now().Add(*waitFlag))
		if err != nil {
			logger.Error("prov:prompt", slog.String("err", err.Error()))
			os.Exit(1)
		}
	}
	if err := send(port, creds); err != nil {
		logger.Error("prov:send", slog.String("err", err.Error()))
		os.Exit(1)
	}
	logger.Info("prov:sent")
	echo(port, os.Stdout, time.Now().Add(*followFlag))
}

var errNoPrompt = errors.New("node did not prompt for credentials")

// waitPrompt copies node output to echo until the credential prompt shows up
// or deadline passes. r must return periodically, e.g. a port with a read
// timeout.
func waitPrompt(r io.Reader, echoTo io.Writer, deadline time.Time) error {
	var buf [256]byte
	var tail []byte
	for time.Now().Before(deadline) {
		n, err := r.Read(buf[:])
		if n > 0 {
			echoTo.Write(buf[:n])
			tail = append(tail, buf[:n]...)
			if strings.Contains(string(tail), credentials.Prompt) {
				return nil
			}
			if len(tail) > 2*len(credentials.Prompt) {
				tail = append(tail[:0], tail[len(tail)-len(credentials.Prompt):]...)
			}
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		} else if err != nil && n == 0 {
			break
		}
	}
	return errNoPrompt
}

func send(w io.Writer, c credentials.Credentials) error {
	line := credentials.AppendLine(nil, c)
	n, err := w.Write(line)
	if err == nil && n != len(line) {
		err = io.ErrShortWrite
	}
	return err
}

func echo(r io.Reader, w io.Writer, deadline time.Time) {
	var buf [256]byte
	for time.Now().Before(deadline) {
		n, err := r.Read(buf[:])
		if n > 0 {
			w.Write(buf[:n])
		}
		if err != nil {
			return
		}
	}
}
