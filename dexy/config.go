package dexy

import (
	"strings"

	"github.com/stableminer/stableminer/erg"
)

// Protocol constants shared by the mint contracts.
const (
	FeeDenom                 = 1000
	BankFeeNum               = 3
	BuybackFeeNum            = 2
	FreeMintThresholdPercent = 98
	ArbThresholdPercent      = 101
	FreeMintPeriod           = 360
	ArbPeriod                = 30
	ResetBuffer              = 5

	DefaultDecimals = 3
	MaxDecimals     = 18
	NanoDecimals    = 9
)

var (
	MinBoxValue = erg.NewAmount(1000000)
	DefaultFee  = erg.NewAmount(1000000)

	feeDenom      = erg.NewAmount(FeeDenom)
	bankFeeNum    = erg.NewAmount(BankFeeNum)
	buybackFeeNum = erg.NewAmount(BuybackFeeNum)
	hundred       = erg.NewAmount(100)
)

// Contracts identifies the protocol boxes on one network by the NFT each of
// them holds.
type Contracts struct {
	TokenID          string
	BankNFT          string
	FreeMintNFT      string
	ArbitrageMintNFT string
	BuybackNFT       string
	OraclePoolNFT    string
	LPNFT            string
	LPTokenID        string
	TrackingNFT      string
}

var (
	mainnetContracts = Contracts{
		TokenID:          "a55b8735ed1a99e46c2c89f8994aacdf4b1109bdcf682f1e5b34479c6e392669",
		BankNFT:          "78c24bdf41283f45208664cd8eb78e2ffa7fbb29f26ebb43e6b31a46b3b975ae",
		FreeMintNFT:      "40db16e1ed50b16077b19102390f36b41ca35c64af87426d04af3b9340859051",
		ArbitrageMintNFT: "c79bef6fe21c788546beab08c963999d5ef74151a9b7fd6c1843f626eea0ecf5",
		BuybackNFT:       "dcce07af04ea4f9b7979336476594dc16321547bcc9c6b95a67cb1a94192da4f",
		OraclePoolNFT:    "6a2b821b5727e85beb5e78b4efb9f0250d59cd48481d2ded2c23e91ba1d07c66",
		LPNFT:            "4ecaa1aac9846b1454563ae51746db95a3a40ee9f8c5f5301afbe348ae803d41",
		LPTokenID:        "804a66426283b8281240df8f9de783651986f20ad6391a71b26b9e7d6faad099",
		TrackingNFT:      "fec586b8d7b92b336a5fea060556cbb4ced15d5334dcb7ca9f9a7bb6ca866c42",
	}

	testnetContracts = Contracts{
		TokenID:          "68e52efc3a235006e893afcf642a75d4e1e56f8c324b200a4c16d93216d83832",
		BankNFT:          "764eeeb81d8f6c566d7abae113ffe558ab86a4c10277800e958a017c86345c78",
		FreeMintNFT:      "9a46aaf31a0c7410d86481240804932417238788dbc5f8478de6d07182cd3be6",
		ArbitrageMintNFT: "e6a6a03862f94c77d7535dd5492f0934fbc9d89f1689bb4be2d215f0db3342a0",
		BuybackNFT:       "9b8a5d2d1fff88653a11ce1d697e8e2e603dbfe34cc7124f4c76e5cd45c5bf34",
		OraclePoolNFT:    "d94bfac40b516353983443209104dcdd5b7ca232a01ccb376ee8014df6330907",
		LPNFT:            "6873424faf94dad45f54d20793dc6214026ab68bd3309b46b5695243174efafa",
		LPTokenID:        "53f62621df1ada5e27f38032610314125395fdddea39064971f51633468a0af0",
		TrackingNFT:      "f14b42ab7a8ff1ba2e2b7056e27cd9c7e018c355499c385850db7f34da881431",
	}
)

// ContractsFor returns the contract set of network. Anything that is not
// testnet is treated as mainnet.
func ContractsFor(network string) Contracts {
	if strings.EqualFold(strings.TrimSpace(network), "testnet") {
		return testnetContracts
	}
	return mainnetContracts
}

// NetworkLabel is the display name of network.
func NetworkLabel(network string) string {
	if strings.EqualFold(strings.TrimSpace(network), "testnet") {
		return "Testnet"
	}
	return "Mainnet"
}
