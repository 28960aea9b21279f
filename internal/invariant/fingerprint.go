package invariant

import (
	"bytes"
	"encoding/binary"

	"shield-core/internal/sdk"
	"shield-core/pkg/crypto_util"
)

// Fingerprint 是公开输入的 Blake3 摘要，只用于相等比较，从不落盘。
type Fingerprint [32]byte

// ComputeFingerprint 对公开输入做规范化序列化后取哈希。
// 序列化规则：每个变长字段前置 4 字节大端长度，定长字段原样写入，
// 字段顺序固定。证明前和填充前必须各算一次，两次输入逐字节一致。
func ComputeFingerprint(bundle *sdk.TransferBundle, fee *sdk.BroadcasterFee, sendWithPublicWallet bool) Fingerprint {
	var buf bytes.Buffer

	writeBytes(&buf, bundle.TokenAddress.Bytes())
	writeBytes(&buf, bundle.RecipientAddress.Bytes())
	writeBytes(&buf, bundle.RecipientAmount.Bytes())

	writeUint32(&buf, uint32(len(bundle.CrossContractCalls)))
	for _, cc := range bundle.CrossContractCalls {
		writeBytes(&buf, cc.To.Bytes())
		writeBytes(&buf, cc.Data)
		if cc.Value != nil {
			writeBytes(&buf, cc.Value.Bytes())
		} else {
			writeBytes(&buf, nil)
		}
	}

	if sendWithPublicWallet {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}

	// broadcaster fee 的有无本身就是公开输入的一部分
	if fee != nil {
		buf.WriteByte(1)
		writeBytes(&buf, []byte(fee.ShieldedRecipient))
		writeBytes(&buf, fee.TokenAddress.Bytes())
		writeBytes(&buf, fee.Amount.Bytes())
	} else {
		buf.WriteByte(0)
	}

	return crypto_util.Blake3Sum(buf.Bytes())
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	writeUint32(buf, uint32(len(b)))
	buf.Write(b)
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	buf.Write(tmp[:])
}
