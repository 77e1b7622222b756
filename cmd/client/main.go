// Package main provides a trader CLI for the matching venue, speaking
// the venue's length-prefixed binary wire protocol directly rather
// than HTTP/JSON. The flag.NewFlagSet per-subcommand layout follows
// the teacher's original cmd/client/main.go.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rishavpaul-system-design/matching-venue/internal/framing"
	"github.com/rishavpaul-system-design/matching-venue/internal/session"
	"github.com/rishavpaul-system-design/matching-venue/internal/types"
)

func main() {
	serverAddr := "localhost:9000"

	loginCmd := flag.NewFlagSet("login", flag.ExitOnError)
	loginCmd.StringVar(&serverAddr, "server", serverAddr, "upstream server address")
	loginName := loginCmd.String("name", "trader1", "account name")
	loginPassword := loginCmd.String("password", "", "account password")

	orderCmd := flag.NewFlagSet("order", flag.ExitOnError)
	orderCmd.StringVar(&serverAddr, "server", serverAddr, "upstream server address")
	orderTicker := orderCmd.String("ticker", "AAPL", "instrument ticker")
	orderSide := orderCmd.String("side", "buy", "buy or sell")
	orderPrice := orderCmd.String("price", "150.00", "limit price")
	orderQty := orderCmd.Uint64("qty", 100, "order quantity")
	orderName := orderCmd.String("name", "trader1", "account name")
	orderPassword := orderCmd.String("password", "", "account password")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "login":
		loginCmd.Parse(os.Args[2:])
		runLogin(serverAddr, *loginName, *loginPassword)
	case "order":
		orderCmd.Parse(os.Args[2:])
		runOrder(serverAddr, *orderTicker, *orderSide, *orderPrice, *orderQty, *orderName, *orderPassword)
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Matching Venue Trader Client

Usage:
  client <command> [options]

Commands:
  login    Authenticate and print the session token
  order    Authenticate then submit a single order

Examples:
  client login -name trader1 -password secret
  client order -ticker AAPL -side buy -price 150.00 -qty 100 -name trader1 -password secret`)
}

func runLogin(addr, name, password string) {
	conn, err := dial(addr)
	if err != nil {
		fmt.Printf("connect error: %v\n", err)
		return
	}
	defer conn.Close()

	if err := send(conn, session.EncodeLoginRequest(types.LoginRequest{Name: name, Password: password})); err != nil {
		fmt.Printf("login request error: %v\n", err)
		return
	}

	resp, err := readLoginResponse(conn)
	if err != nil {
		fmt.Printf("login response error: %v\n", err)
		return
	}
	if !resp.Ok {
		fmt.Printf("login failed: %s\n", resp.Error)
		return
	}
	fmt.Printf("logged in, token=%d\n", resp.Token)
}

func runOrder(addr, ticker, side, price string, qty uint64, name, password string) {
	conn, err := dial(addr)
	if err != nil {
		fmt.Printf("connect error: %v\n", err)
		return
	}
	defer conn.Close()

	if err := send(conn, session.EncodeLoginRequest(types.LoginRequest{Name: name, Password: password})); err != nil {
		fmt.Printf("login request error: %v\n", err)
		return
	}
	resp, err := readLoginResponse(conn)
	if err != nil || !resp.Ok {
		fmt.Printf("login failed: %v %s\n", err, resp.Error)
		return
	}

	priceDecimal, err := decimal.NewFromString(price)
	if err != nil {
		fmt.Printf("invalid price: %v\n", err)
		return
	}
	priceFloat, _ := priceDecimal.Float64()

	action := types.ActionBuy
	if side == "sell" {
		action = types.ActionSell
	}

	order := types.Order{
		Id:        types.OrderId(time.Now().UnixNano()),
		Timestamp: types.Timestamp(time.Now().UnixNano()),
		Ticker:    types.NewTicker(ticker),
		Quantity:  types.Quantity(qty),
		Price:     types.Price(priceFloat),
		Action:    action,
	}

	if err := send(conn, session.EncodeOrder(order)); err != nil {
		fmt.Printf("order send error: %v\n", err)
		return
	}
	fmt.Printf("order submitted: %s %s %d @ %s\n", ticker, side, qty, price)
}

func dial(addr string) (net.Conn, error) {
	return net.DialTimeout("tcp", addr, 5*time.Second)
}

func send(conn net.Conn, body []byte) error {
	framed, err := framing.Frame(body)
	if err != nil {
		return err
	}
	_, err = conn.Write(framed)
	return err
}

func readLoginResponse(conn net.Conn) (types.LoginResponse, error) {
	reader := bufio.NewReader(conn)
	var resp types.LoginResponse
	header := make([]byte, framing.HeaderSize)
	if _, err := readFull(reader, header); err != nil {
		return resp, err
	}
	bodyLen := int(header[0]) | int(header[1])<<8
	body := make([]byte, bodyLen)
	if _, err := readFull(reader, body); err != nil {
		return resp, err
	}

	var env struct {
		Kind string
		Body []byte
	}
	if err := session.Decode(body, &env); err != nil {
		return resp, err
	}
	err := session.Decode(env.Body, &resp)
	return resp, err
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
