package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"shield-core/internal/relayer"
	"shield-core/pkg/amount"
)

var relayerCmd = &cobra.Command{
	Use:   "relayer",
	Short: "探测 relayer 可用性",
	Run: func(cmd *cobra.Command, args []string) {
		relayerURL, _ := cmd.Flags().GetString("url")
		chainID, _ := cmd.Flags().GetUint64("chain")

		gw := relayer.NewGateway(relayerURL, 2*time.Second, 3*time.Second, 10*time.Second)

		ctx := context.Background()
		if !gw.CheckHealth(ctx) {
			fmt.Println("❌ relayer 不可用 (转账会走自签降级路径)")
			return
		}
		fmt.Println("✅ relayer 健康")

		info, err := gw.Info(ctx, chainID)
		if err != nil {
			fmt.Printf("获取 relayer 信息失败: %v\n", err)
			return
		}
		fmt.Printf("屏蔽地址: %s\n", info.ShieldedAddress)
		fmt.Printf("费用代币: %s\n", info.FeeTokenAddress.Hex())
		if info.FeePerUnitGas != nil {
			fmt.Printf("单位 gas 费率: %s\n", info.FeePerUnitGas.String())
		}

		// 展示报价仅供参考，提交时以本地费用模型为准
		if amountStr, _ := cmd.Flags().GetString("quote-amount"); amountStr != "" {
			amt, err := amount.FromString(amountStr)
			if err != nil {
				fmt.Printf("金额格式错误: %v\n", err)
				return
			}
			fee, err := gw.QuoteFee(ctx, chainID, info.FeeTokenAddress, amt, 1_200_000)
			if err != nil {
				fmt.Printf("获取报价失败 (不影响转账): %v\n", err)
				return
			}
			fmt.Printf("参考费用报价: %s\n", fee.String())
		}
	},
}

func init() {
	rootCmd.AddCommand(relayerCmd)
	relayerCmd.Flags().String("url", "http://localhost:9050", "relayer 地址")
	relayerCmd.Flags().Uint64("chain", 1, "链 ID")
	relayerCmd.Flags().String("quote-amount", "", "可选: 按该金额请求展示报价")
}
