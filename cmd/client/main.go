// Command client is a CLI for exercising the exchange's HTTP API.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "Server URL")

	submitCmd := flag.NewFlagSet("submit", flag.ExitOnError)
	submitSymbol := submitCmd.String("symbol", "AAPL", "Symbol")
	submitSide := submitCmd.String("side", "buy", "Order side (buy/sell)")
	submitType := submitCmd.String("type", "limit", "Order type (market/limit)")
	submitTIF := submitCmd.String("tif", "GTC", "Time in force (GTC/IOC/FOK)")
	submitPrice := submitCmd.String("price", "150.00", "Order price (ignored for market orders)")
	submitQty := submitCmd.Int64("qty", 100, "Order quantity")
	submitUser := submitCmd.String("user", "trader1", "User ID")

	cancelCmd := flag.NewFlagSet("cancel", flag.ExitOnError)
	cancelSymbol := cancelCmd.String("symbol", "", "Symbol")
	cancelOrderID := cancelCmd.Uint64("order-id", 0, "Order ID to cancel")

	bookCmd := flag.NewFlagSet("book", flag.ExitOnError)
	bookSymbol := bookCmd.String("symbol", "AAPL", "Symbol")
	bookLevels := bookCmd.Int("levels", 5, "Number of levels to show")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	flag.Parse()

	switch os.Args[1] {
	case "submit":
		submitCmd.Parse(os.Args[2:])
		submitOrder(*serverURL, *submitUser, *submitSymbol, *submitSide, *submitType, *submitTIF, *submitPrice, *submitQty)

	case "cancel":
		cancelCmd.Parse(os.Args[2:])
		cancelOrder(*serverURL, *cancelSymbol, *cancelOrderID)

	case "book":
		bookCmd.Parse(os.Args[2:])
		getBook(*serverURL, *bookSymbol, *bookLevels)

	case "demo":
		runDemo(*serverURL)

	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Matching Exchange Client

Usage:
  client <command> [options]

Commands:
  submit    Submit a new order
  cancel    Cancel a resting order
  book      View order book depth
  demo      Run a short demonstration

Examples:
  client submit -symbol AAPL -side buy -type limit -price 150.00 -qty 100 -user trader1
  client cancel -symbol AAPL -order-id 123
  client book -symbol AAPL -levels 10
  client demo`)
}

func submitOrder(serverURL, user, symbol, side, orderType, tif, price string, qty int64) {
	req := map[string]any{
		"user_id":       user,
		"symbol":        symbol,
		"side":          side,
		"type":          orderType,
		"time_in_force": tif,
		"quantity":      qty,
	}
	if orderType == "limit" {
		req["price"] = price
	}

	resp, err := postJSON(serverURL+"/orders", req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Println("Order Response:")
	printJSON(resp)
}

func cancelOrder(serverURL, symbol string, orderID uint64) {
	url := fmt.Sprintf("%s/orders/%s/%d", serverURL, symbol, orderID)

	req, err := http.NewRequest(http.MethodDelete, url, nil)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	fmt.Println("Cancel Response:")
	printJSONBytes(body)
}

func getBook(serverURL, symbol string, levels int) {
	url := fmt.Sprintf("%s/book?symbol=%s&levels=%d", serverURL, symbol, levels)

	resp, err := http.Get(url)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	var data map[string]any
	json.Unmarshal(body, &data)

	fmt.Printf("\n=== %s Order Book ===\n\n", symbol)

	if asks, ok := data["Asks"].([]any); ok {
		fmt.Println("ASKS:")
		for i := len(asks) - 1; i >= 0; i-- {
			if ask, ok := asks[i].(map[string]any); ok {
				fmt.Printf("  %v: %v shares (%v orders)\n", ask["Price"], ask["Quantity"], ask["OrderCount"])
			}
		}
	}

	if bids, ok := data["Bids"].([]any); ok {
		fmt.Println("BIDS:")
		for _, bid := range bids {
			if b, ok := bid.(map[string]any); ok {
				fmt.Printf("  %v: %v shares (%v orders)\n", b["Price"], b["Quantity"], b["OrderCount"])
			}
		}
	}
}

func runDemo(serverURL string) {
	fmt.Println("=== Matching Exchange Demo ===")

	fmt.Println("1. Initial order book (empty):")
	getBook(serverURL, "AAPL", 5)

	fmt.Println("\n2. Market maker (mm1) posts buy orders:")
	submitOrder(serverURL, "mm1", "AAPL", "buy", "limit", "GTC", "149.00", 100)
	submitOrder(serverURL, "mm1", "AAPL", "buy", "limit", "GTC", "148.50", 200)

	fmt.Println("\n3. Market maker (mm1) posts sell orders:")
	submitOrder(serverURL, "mm1", "AAPL", "sell", "limit", "GTC", "151.00", 100)
	submitOrder(serverURL, "mm1", "AAPL", "sell", "limit", "GTC", "151.50", 200)

	fmt.Println("\n4. Order book with liquidity:")
	getBook(serverURL, "AAPL", 5)

	fmt.Println("\n5. Trader (trader1) buys 150 shares with a market order:")
	submitOrder(serverURL, "trader1", "AAPL", "buy", "market", "IOC", "0", 150)

	fmt.Println("\n6. Order book after the trade:")
	getBook(serverURL, "AAPL", 5)

	fmt.Println("\n=== Demo Complete ===")
}

func postJSON(url string, data any) (map[string]any, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	resp, err := http.Post(url, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var result map[string]any
	err = json.Unmarshal(body, &result)
	return result, err
}

func printJSON(data any) {
	jsonBytes, _ := json.MarshalIndent(data, "", "  ")
	fmt.Println(string(jsonBytes))
}

func printJSONBytes(data []byte) {
	var obj any
	json.Unmarshal(data, &obj)
	printJSON(obj)
}
