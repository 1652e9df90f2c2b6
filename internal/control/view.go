package control

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/vietddude/breadwatch/internal/balance"
	"github.com/vietddude/breadwatch/internal/core/domain"
	"github.com/vietddude/breadwatch/internal/ledger"
)

// Dashboard is the combined view served to clients.
type Dashboard struct {
	Identity IdentityView `json:"identity"`
	Symbol   string       `json:"symbol"`
	Balance  BalanceView  `json:"balance"`
	Pending  *string      `json:"pending"`
	Ledger   LedgerView   `json:"ledger"`
}

// IdentityView is the connected identity and its alias state.
type IdentityView struct {
	Connected    bool   `json:"connected"`
	Address      string `json:"address,omitempty"`
	Alias        string `json:"alias,omitempty"`
	AliasLoading bool   `json:"aliasLoading,omitempty"`
	AliasError   string `json:"aliasError,omitempty"`
}

// BalanceView is the token balance. Raw and Formatted are empty while unknown.
type BalanceView struct {
	Known     bool   `json:"known"`
	Raw       string `json:"raw,omitempty"`
	Formatted string `json:"formatted,omitempty"`
}

// LedgerView is the reconciled mint history, newest first.
type LedgerView struct {
	Loading bool        `json:"loading"`
	Entries []EntryView `json:"entries"`
}

// EntryView is one ledger row.
type EntryView struct {
	Beneficiary string `json:"beneficiary"`
	Amount      string `json:"amount"`
	Formatted   string `json:"formatted"`
	TxHash      string `json:"txHash"`
	BlockNumber uint64 `json:"blockNumber"`
	Time        string `json:"time"`
}

func identityView(id domain.Identity) IdentityView {
	if !id.Connected() {
		return IdentityView{}
	}
	return IdentityView{Connected: true, Address: id.Address.Hex(), Alias: id.Alias}
}

func balanceView(st balance.State, decimals int32) BalanceView {
	if !st.Known || st.Value == nil {
		return BalanceView{}
	}
	return BalanceView{
		Known:     true,
		Raw:       st.Value.String(),
		Formatted: domain.FormatUnits(st.Value, decimals),
	}
}

func pendingView(v decimal.NullDecimal) *string {
	if !v.Valid {
		return nil
	}
	s := v.Decimal.String()
	return &s
}

func ledgerView(snap ledger.Snapshot, decimals int32) LedgerView {
	entries := make([]EntryView, 0, len(snap.Entries))
	for _, ev := range snap.Entries {
		entries = append(entries, EntryView{
			Beneficiary: ev.Beneficiary.Hex(),
			Amount:      amountString(ev.Amount),
			Formatted:   domain.FormatUnits(ev.Amount, decimals),
			TxHash:      ev.TxHash.Hex(),
			BlockNumber: ev.BlockNumber,
			Time:        ev.TimeLabel,
		})
	}
	return LedgerView{Loading: snap.Loading, Entries: entries}
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
