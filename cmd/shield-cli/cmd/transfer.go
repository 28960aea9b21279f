package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var transferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "发起一次屏蔽池转账",
	Long: `通过 shield-server 发起转账。服务端会计算费用、生成证明并提交，
relayer 不可用时自动降级为自签直发。证明生成可能需要几分钟。`,
	Run: func(cmd *cobra.Command, args []string) {
		walletID, _ := cmd.Flags().GetString("wallet")
		token, _ := cmd.Flags().GetString("token")
		recipient, _ := cmd.Flags().GetString("to")
		amount, _ := cmd.Flags().GetString("amount")
		decimals, _ := cmd.Flags().GetUint8("decimals")

		body, _ := json.Marshal(map[string]any{
			"wallet_id":          walletID,
			"token_address":      token,
			"recipient_address":  recipient,
			"amount":             amount,
			"fee_token_decimals": decimals,
		})

		fmt.Println("正在提交转账 (证明生成可能需要几分钟)...")
		client := &http.Client{Timeout: 15 * time.Minute}
		resp, err := client.Post(serverURL+"/api/v1/transfers", "application/json", bytes.NewReader(body))
		if err != nil {
			fmt.Printf("请求失败: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		var out struct {
			Code    int    `json:"code"`
			Message string `json:"msg"`
			Data    struct {
				TransactionHash string `json:"transaction_hash"`
				UsedRelayer     bool   `json:"used_relayer"`
				PrivacyLevel    string `json:"privacy_level"`
				RecipientAmount string `json:"recipient_amount"`
				RelayerFee      string `json:"relayer_fee"`
				GasFee          string `json:"gas_fee"`
				ProtocolFee     string `json:"protocol_fee"`
			} `json:"data"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			fmt.Printf("解析响应失败: %v\n", err)
			os.Exit(1)
		}
		if out.Code != 0 {
			fmt.Printf("转账失败 [%d]: %s\n", out.Code, out.Message)
			os.Exit(1)
		}

		fmt.Println("\n✅ 转账已提交！")
		fmt.Printf("交易哈希: %s\n", out.Data.TransactionHash)
		fmt.Printf("提交路径: %s (relayer=%v)\n", out.Data.PrivacyLevel, out.Data.UsedRelayer)
		fmt.Printf("到账金额: %s\n", out.Data.RecipientAmount)
		fmt.Printf("费用明细: relayer=%s gas=%s protocol=%s\n",
			out.Data.RelayerFee, out.Data.GasFee, out.Data.ProtocolFee)
	},
}

func init() {
	rootCmd.AddCommand(transferCmd)
	transferCmd.Flags().String("wallet", "", "钱包 ID")
	transferCmd.Flags().String("token", "", "代币合约地址 (留空为原生币)")
	transferCmd.Flags().String("to", "", "收款地址")
	transferCmd.Flags().String("amount", "", "金额 (基础单位整数)")
	transferCmd.Flags().Uint8("decimals", 18, "费用代币小数位数")
	_ = transferCmd.MarkFlagRequired("wallet")
	_ = transferCmd.MarkFlagRequired("to")
	_ = transferCmd.MarkFlagRequired("amount")
}
