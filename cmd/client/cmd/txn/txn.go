package txn

import "github.com/spf13/cobra"

var TxnCmd = &cobra.Command{
	Use:   "txn",
	Short: "Локальные складские операции",
}
