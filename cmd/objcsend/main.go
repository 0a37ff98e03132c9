// objcsend - inspect Objective-C dispatch and send messages from the shell
package main

import (
	"fmt"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("objcsend.cli")

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: objcsend <command> [options] [args...]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  abi     Print the dispatch entry point table\n")
	fmt.Fprintf(os.Stderr, "  send    Send one message through the system runtime\n")
	fmt.Fprintf(os.Stderr, "  trace   Print a recorded send trace\n")
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  objcsend abi -arch amd64                      # Entry points on x86_64\n")
	fmt.Fprintf(os.Stderr, "  objcsend send -ret string NSProcessInfo processName\n")
	fmt.Fprintf(os.Stderr, "  objcsend send -ret u64 0x600000c04000 count   # Send to an object\n")
	fmt.Fprintf(os.Stderr, "  objcsend send -trace sends.cbor NSObject new  # Record the send\n")
	fmt.Fprintf(os.Stderr, "  objcsend trace sends.cbor\n")
	fmt.Fprintf(os.Stderr, "\nRun 'objcsend <command> -h' for command options.\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "abi":
		err = abiCommand(args)
	case "send":
		err = sendCommand(args)
	case "trace":
		err = traceCommand(args)
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
