package interpreter

import (
	transfertypes "github.com/cosmos/ibc-go/v10/modules/apps/transfer/types"

	"github.com/oraichain/ibc-routing/tracker/decoder"
	"github.com/oraichain/ibc-routing/tracker/store"
)

const (
	usdtOnBsc    = "oraib0x55d398326f99059fF775485246999027B3197955"
	evmReceiver  = "oraib0x8754032Ac7966A909e2E753308dF56bb08DabD69"
	oraiReceiver = "orai1hvr9d72r5um9lvt0rpkd4r75vrsqtw6yujhqs2"
)

func src(domain store.Domain, chainID, txHash string) decoder.Source {
	return decoder.Source{Domain: domain, ChainID: chainID, TxHash: txHash, Height: 100}
}

func packet(seq uint64, srcCh, dstCh, denom, receiver string) decoder.Packet {
	return decoder.Packet{
		Sequence:   seq,
		SrcPort:    "transfer",
		SrcChannel: srcCh,
		DstPort:    "transfer",
		DstChannel: dstCh,
		Data: transfertypes.FungibleTokenPacketData{
			Denom:    denom,
			Amount:   "10000000000000000",
			Sender:   "sender",
			Receiver: receiver,
		},
	}
}

func evmTransfer(nonce uint64, prefix, txHash string) decoder.EvmTransferEvent {
	return decoder.EvmTransferEvent{
		Source:         src(store.DomainEvm, prefix, txHash),
		EventNonce:     nonce,
		EvmChainPrefix: prefix,
		Amount:         "10000000000000000",
		Destination:    decoder.Route{Channel: "channel-1", Receiver: oraiReceiver},
	}
}

func autoForward(nonce uint64, prefix string, seq uint64, txHash string) decoder.AutoForwardEvent {
	return decoder.AutoForwardEvent{
		Source:         src(store.DomainRelay, "oraibridge-subnet-2", txHash),
		EventNonce:     nonce,
		EvmChainPrefix: prefix,
		Packet:         packet(seq, "channel-0", "channel-1", usdtOnBsc, oraiReceiver),
	}
}

func primaryRecv(seq uint64, txHash string, fwd *decoder.Forward) decoder.RecvPacketEvent {
	return decoder.RecvPacketEvent{
		Source:     src(store.DomainPrimary, "Oraichain", txHash),
		Packet:     packet(seq, "channel-0", "channel-1", usdtOnBsc, oraiReceiver),
		Ack:        `{"result":"AQ=="}`,
		AckSuccess: true,
		Forward:    fwd,
	}
}

func relayBound(seq uint64) decoder.Forward {
	return decoder.Forward{
		Packet:         packet(seq, "channel-1", "channel-0", usdtOnBsc, evmReceiver),
		Target:         store.DomainRelay,
		EvmChainPrefix: "oraib",
	}
}

func cosmosBound(seq uint64, chainID string, observed bool) decoder.Forward {
	return decoder.Forward{
		Packet:   packet(seq, "channel-15", "channel-301", "uatom", "cosmos1receiver"),
		Target:   store.DomainCosmos,
		ChainID:  chainID,
		Observed: observed,
	}
}

func relayRecv(seq uint64, txID uint64, txHash string) decoder.RecvPacketEvent {
	return decoder.RecvPacketEvent{
		Source:         src(store.DomainRelay, "oraibridge-subnet-2", txHash),
		Packet:         packet(seq, "channel-1", "channel-0", usdtOnBsc, evmReceiver),
		Ack:            `{"result":"AQ=="}`,
		AckSuccess:     true,
		OutgoingTxID:   txID,
		EvmChainPrefix: "oraib",
	}
}

func transferBack(fwd decoder.Forward, txHash string) decoder.TransferBackEvent {
	return decoder.TransferBackEvent{
		Source:  src(store.DomainPrimary, "Oraichain", txHash),
		Sender:  oraiReceiver,
		Forward: fwd,
	}
}
