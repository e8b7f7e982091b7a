package main

import "sms_crm_agent/internal/cli"

func main() {
	cli.Execute()
}
