// Package core holds the node's shared data model, configuration and the
// Context carrier described in the design notes: a single bundle of store
// handles threaded explicitly through the pipeline instead of a
// proliferation of generic type parameters.
package core

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultListenerIntervalMillis = 10_000
	DefaultListenerUseJitter      = true

	DefaultDKGTimeoutDuration            = 10 * 4
	DefaultRandomnessTaskExclusiveWindow = 10
	DefaultDKGWaitForPhaseIntervalMillis = 10_000
	DefaultProviderPollingIntervalMillis = 10_000
	DefaultResultCacheRetentionBlocks    = 2_000

	DefaultContractTransactionRetryBase        = 2
	DefaultContractTransactionRetryFactor      = 1000
	DefaultContractTransactionRetryMaxAttempts = 3

	DefaultContractViewRetryBase        = 2
	DefaultContractViewRetryFactor      = 500
	DefaultContractViewRetryMaxAttempts = 3

	DefaultCommitPartialSignatureRetryBase        = 2
	DefaultCommitPartialSignatureRetryFactor      = 1000
	DefaultCommitPartialSignatureRetryMaxAttempts = 5

	// gas/threshold constants carried from the original node's contract
	// tuning. No code in this module references them: internal/node/chainclient
	// leaves gas estimation for FulfillRandomness to go-ethereum.
	FulfillRandomnessGasExceptCallback = 650_000
	RandomnessRewardGas                = 9_000
	VerificationGasOverMinimumThreshold = 50_000
	DefaultMinimumThreshold             = 3
)

// Jitter scales d by a uniform factor in [0.5, 1.0], per the retry-bound
// testable property.
func Jitter(d time.Duration) time.Duration {
	return time.Duration(float64(d) * (0.5 + rand.Float64()*0.5))
}

// ExponentialBackoffRetryDescriptor parameterizes a single retry policy. It
// is reused, unmodified, for contract view calls, contract transaction
// calls, and commit-partial-signature RPC delivery.
type ExponentialBackoffRetryDescriptor struct {
	Base        uint64 `toml:"base"`
	Factor      uint64 `toml:"factor"`
	MaxAttempts int    `toml:"max_attempts"`
	UseJitter   bool   `toml:"use_jitter"`
}

func defaultDescriptor(base, factor uint64, maxAttempts int) ExponentialBackoffRetryDescriptor {
	return ExponentialBackoffRetryDescriptor{Base: base, Factor: factor, MaxAttempts: maxAttempts, UseJitter: true}
}

// ListenerType discriminates the periodic producer tasks (C4).
type ListenerType int

const (
	ListenerBlock ListenerType = iota
	ListenerPreGrouping
	ListenerDKGFinalization
	ListenerPostCommitGrouping
	ListenerPostGrouping
	ListenerNewRandomnessTask
	ListenerReadyToHandleRandomnessTask
	ListenerRandomnessSignatureAggregation
)

func (l ListenerType) String() string {
	switch l {
	case ListenerBlock:
		return "Block"
	case ListenerPreGrouping:
		return "PreGrouping"
	case ListenerDKGFinalization:
		return "DKGFinalization"
	case ListenerPostCommitGrouping:
		return "PostCommitGrouping"
	case ListenerPostGrouping:
		return "PostGrouping"
	case ListenerNewRandomnessTask:
		return "NewRandomnessTask"
	case ListenerReadyToHandleRandomnessTask:
		return "ReadyToHandleRandomnessTask"
	case ListenerRandomnessSignatureAggregation:
		return "RandomnessSignatureAggregation"
	default:
		return "Unknown"
	}
}

// SubscriberType discriminates the pipeline's state-transition rules (C5).
type SubscriberType int

const (
	SubscriberPreGrouping SubscriberType = iota
	SubscriberInGrouping
	SubscriberPostSuccessGrouping
	SubscriberPostGrouping
	SubscriberReadyToHandleRandomnessTask
	SubscriberRandomnessSignatureAggregation
)

func (s SubscriberType) String() string {
	switch s {
	case SubscriberPreGrouping:
		return "PreGrouping"
	case SubscriberInGrouping:
		return "InGrouping"
	case SubscriberPostSuccessGrouping:
		return "PostSuccessGrouping"
	case SubscriberPostGrouping:
		return "PostGrouping"
	case SubscriberReadyToHandleRandomnessTask:
		return "ReadyToHandleRandomnessTask"
	case SubscriberRandomnessSignatureAggregation:
		return "RandomnessSignatureAggregation"
	default:
		return "Unknown"
	}
}

// RpcServerType discriminates the long-lived RPC servers the scheduler owns.
type RpcServerType int

const (
	RpcServerCommitter RpcServerType = iota
	RpcServerManagement
)

func (r RpcServerType) String() string {
	if r == RpcServerCommitter {
		return "Committer"
	}
	return "Management"
}

// TaskKind tags what sort of background task a TaskType names.
type TaskKind int

const (
	KindListener TaskKind = iota
	KindSubscriber
	KindRpcServer
)

// TaskType is the scheduler's task-table key: one small discriminated union
// rather than a family of generic parameters, per the design notes.
type TaskType struct {
	Kind       TaskKind
	Listener   ListenerType
	Subscriber SubscriberType
	RpcServer  RpcServerType
}

func (t TaskType) String() string {
	switch t.Kind {
	case KindListener:
		return "Listener(" + t.Listener.String() + ")"
	case KindSubscriber:
		return "Subscriber(" + t.Subscriber.String() + ")"
	default:
		return "RpcServer(" + t.RpcServer.String() + ")"
	}
}

func ListenerTask(l ListenerType) TaskType     { return TaskType{Kind: KindListener, Listener: l} }
func SubscriberTask(s SubscriberType) TaskType { return TaskType{Kind: KindSubscriber, Subscriber: s} }
func RpcServerTask(r RpcServerType) TaskType   { return TaskType{Kind: KindRpcServer, RpcServer: r} }

// ListenerDescriptor is one entry of the config's listeners[] table.
type ListenerDescriptor struct {
	Type           ListenerType `toml:"-"`
	TypeName       string       `toml:"l_type"`
	IntervalMillis uint64       `toml:"interval_millis"`
	UseJitter      bool         `toml:"use_jitter"`
}

func defaultListenerDescriptor(t ListenerType) ListenerDescriptor {
	return ListenerDescriptor{Type: t, TypeName: t.String(), IntervalMillis: DefaultListenerIntervalMillis, UseJitter: DefaultListenerUseJitter}
}

// TimeLimitDescriptor groups every interval/timeout/retry-descriptor value
// the node's pipeline consults.
type TimeLimitDescriptor struct {
	ListenerIntervalMillis             uint64                            `toml:"listener_interval_millis"`
	DKGWaitForPhaseIntervalMillis      uint64                            `toml:"dkg_wait_for_phase_interval_millis"`
	DKGTimeoutDuration                 int                               `toml:"dkg_timeout_duration"`
	RandomnessTaskExclusiveWindow      int                               `toml:"randomness_task_exclusive_window"`
	ResultCacheRetentionBlocks         int                               `toml:"result_cache_retention_blocks"`
	ProviderPollingIntervalMillis      uint64                            `toml:"provider_polling_interval_millis"`
	ContractTransactionRetryDescriptor ExponentialBackoffRetryDescriptor `toml:"contract_transaction_retry_descriptor"`
	ContractViewRetryDescriptor        ExponentialBackoffRetryDescriptor `toml:"contract_view_retry_descriptor"`
	CommitPartialSigRetryDescriptor    ExponentialBackoffRetryDescriptor `toml:"commit_partial_signature_retry_descriptor"`
}

func defaultTimeLimits() TimeLimitDescriptor {
	return TimeLimitDescriptor{
		ListenerIntervalMillis:             DefaultListenerIntervalMillis,
		DKGWaitForPhaseIntervalMillis:      DefaultDKGWaitForPhaseIntervalMillis,
		DKGTimeoutDuration:                 DefaultDKGTimeoutDuration,
		RandomnessTaskExclusiveWindow:      DefaultRandomnessTaskExclusiveWindow,
		ResultCacheRetentionBlocks:         DefaultResultCacheRetentionBlocks,
		ProviderPollingIntervalMillis:      DefaultProviderPollingIntervalMillis,
		ContractTransactionRetryDescriptor: defaultDescriptor(DefaultContractTransactionRetryBase, DefaultContractTransactionRetryFactor, DefaultContractTransactionRetryMaxAttempts),
		ContractViewRetryDescriptor:        defaultDescriptor(DefaultContractViewRetryBase, DefaultContractViewRetryFactor, DefaultContractViewRetryMaxAttempts),
		CommitPartialSigRetryDescriptor:    defaultDescriptor(DefaultCommitPartialSignatureRetryBase, DefaultCommitPartialSignatureRetryFactor, DefaultCommitPartialSignatureRetryMaxAttempts),
	}
}

// LoggerDescriptor is the config's logger.* table.
type LoggerDescriptor struct {
	NodeID          string `toml:"node_id"`
	ContextLogging  bool   `toml:"context_logging"`
	LogFilePath     string `toml:"log_file_path"`
	RollingFileSize string `toml:"rolling_file_size"`
}

func defaultLoggerDescriptor() LoggerDescriptor {
	return LoggerDescriptor{NodeID: "running", LogFilePath: "log/running", RollingFileSize: "10gb"}
}

// HDWallet is the config's account.hdwallet table.
type HDWallet struct {
	Mnemonic   string  `toml:"mnemonic"`
	Path       *string `toml:"path"`
	Index      uint32  `toml:"index"`
	Passphrase *string `toml:"passphrase"`
}

// Keystore is the config's account.keystore table.
type Keystore struct {
	Path     string `toml:"path"`
	Password string `toml:"password"`
}

// Account is the signer source: exactly one of HDWallet, Keystore or
// PrivateKey should be set.
type Account struct {
	HDWallet   *HDWallet `toml:"hdwallet"`
	Keystore   *Keystore `toml:"keystore"`
	PrivateKey *string   `toml:"private_key"`
}

// Config is the node's full configuration surface (spec.md §6), the one
// object created at startup and passed explicitly through the rest of the
// process — no ambient singletons besides the logger sink.
type Config struct {
	NodeCommitterRPCEndpoint           string               `toml:"node_committer_rpc_endpoint"`
	NodeAdvertisedCommitterRPCEndpoint string               `toml:"node_advertised_committer_rpc_endpoint"`
	NodeManagementRPCEndpoint          string               `toml:"node_management_rpc_endpoint"`
	NodeManagementRPCToken             string               `toml:"node_management_rpc_token"`
	ProviderEndpoint                   string               `toml:"provider_endpoint"`
	ChainID                            uint64               `toml:"chain_id"`
	ControllerAddress                  string               `toml:"controller_address"`
	AdapterAddress                     string               `toml:"adapter_address"`
	DataPath                           string               `toml:"data_path"`
	Account                            Account              `toml:"account"`
	Listeners                          []ListenerDescriptor `toml:"listeners"`
	Logger                             LoggerDescriptor     `toml:"logger"`
	TimeLimits                         TimeLimitDescriptor  `toml:"time_limits"`
}

// DefaultConfig returns the node's defaults, mirroring the original node's
// Default impl and its subsequent initialize() normalization step.
func DefaultConfig() *Config {
	c := &Config{
		NodeCommitterRPCEndpoint:  "[::1]:50060",
		NodeManagementRPCEndpoint: "[::1]:50099",
		NodeManagementRPCToken:    "for_test",
		ProviderEndpoint:          "localhost:8545",
		ChainID:                   0,
		ControllerAddress:         "0xdc64a140aa3e981100a9beca4e685f962f0cf6c9",
		AdapterAddress:            "0xa513e6e4b8f2a923d98304ec87f64353c4d5c853",
		DataPath:                  "data.sqlite",
		Logger:                    defaultLoggerDescriptor(),
		TimeLimits:                defaultTimeLimits(),
	}
	c.Initialize()
	return c
}

// LoadConfig reads a TOML config file from path, applying the same
// normalization DefaultConfig applies to its zero values.
func LoadConfig(path string) (*Config, error) {
	c := &Config{}
	if _, err := toml.DecodeFile(path, c); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	c.Initialize()
	return c, nil
}

// Initialize fills in defaults for the advertised committer endpoint (the
// bind endpoint), data_path, logger, listeners and each zero-valued
// time_limits field, mirroring the original node's Config::initialize. The
// other endpoints, the management token, chain id, contract addresses and
// account are left as they are.
func (c *Config) Initialize() *Config {
	if c.NodeAdvertisedCommitterRPCEndpoint == "" {
		c.NodeAdvertisedCommitterRPCEndpoint = c.NodeCommitterRPCEndpoint
	}
	if c.DataPath == "" {
		c.DataPath = "data.sqlite"
	}
	if c.Logger.LogFilePath == "" {
		c.Logger = defaultLoggerDescriptor()
	}
	if len(c.Listeners) == 0 {
		c.Listeners = []ListenerDescriptor{
			defaultListenerDescriptor(ListenerBlock),
			defaultListenerDescriptor(ListenerPreGrouping),
			defaultListenerDescriptor(ListenerDKGFinalization),
			defaultListenerDescriptor(ListenerPostCommitGrouping),
			defaultListenerDescriptor(ListenerPostGrouping),
			defaultListenerDescriptor(ListenerNewRandomnessTask),
			defaultListenerDescriptor(ListenerReadyToHandleRandomnessTask),
			defaultListenerDescriptor(ListenerRandomnessSignatureAggregation),
		}
	}
	if c.TimeLimits.ListenerIntervalMillis == 0 {
		c.TimeLimits.ListenerIntervalMillis = DefaultListenerIntervalMillis
	}
	if c.TimeLimits.DKGWaitForPhaseIntervalMillis == 0 {
		c.TimeLimits.DKGWaitForPhaseIntervalMillis = DefaultDKGWaitForPhaseIntervalMillis
	}
	if c.TimeLimits.DKGTimeoutDuration == 0 {
		c.TimeLimits.DKGTimeoutDuration = DefaultDKGTimeoutDuration
	}
	if c.TimeLimits.RandomnessTaskExclusiveWindow == 0 {
		c.TimeLimits.RandomnessTaskExclusiveWindow = DefaultRandomnessTaskExclusiveWindow
	}
	if c.TimeLimits.ResultCacheRetentionBlocks == 0 {
		c.TimeLimits.ResultCacheRetentionBlocks = DefaultResultCacheRetentionBlocks
	}
	if c.TimeLimits.ProviderPollingIntervalMillis == 0 {
		c.TimeLimits.ProviderPollingIntervalMillis = DefaultProviderPollingIntervalMillis
	}
	if c.TimeLimits.ContractTransactionRetryDescriptor.MaxAttempts == 0 {
		c.TimeLimits.ContractTransactionRetryDescriptor = defaultDescriptor(DefaultContractTransactionRetryBase, DefaultContractTransactionRetryFactor, DefaultContractTransactionRetryMaxAttempts)
	}
	if c.TimeLimits.ContractViewRetryDescriptor.MaxAttempts == 0 {
		c.TimeLimits.ContractViewRetryDescriptor = defaultDescriptor(DefaultContractViewRetryBase, DefaultContractViewRetryFactor, DefaultContractViewRetryMaxAttempts)
	}
	if c.TimeLimits.CommitPartialSigRetryDescriptor.MaxAttempts == 0 {
		c.TimeLimits.CommitPartialSigRetryDescriptor = defaultDescriptor(DefaultCommitPartialSignatureRetryBase, DefaultCommitPartialSignatureRetryFactor, DefaultCommitPartialSignatureRetryMaxAttempts)
	}
	return c
}

// ManagementRPCToken resolves the "env" sentinel against
// ARPA_NODE_MANAGEMENT_SERVER_TOKEN.
func (c *Config) ManagementRPCToken() (string, error) {
	if c.NodeManagementRPCToken == "env" {
		v, ok := os.LookupEnv("ARPA_NODE_MANAGEMENT_SERVER_TOKEN")
		if !ok {
			return "", fmt.Errorf("ARPA_NODE_MANAGEMENT_SERVER_TOKEN not set")
		}
		return v, nil
	}
	return c.NodeManagementRPCToken, nil
}

// ErrLackOfAccount is returned when no signer source is configured.
var ErrLackOfAccount = fmt.Errorf("no account configured: set one of hdwallet, keystore or private_key")

func (a *Account) resolveEnv(value, envVar string) (string, error) {
	if value != "env" {
		return value, nil
	}
	v, ok := os.LookupEnv(envVar)
	if !ok {
		return "", fmt.Errorf("%s not set", envVar)
	}
	return v, nil
}

// ResolvedMnemonic returns the HD wallet mnemonic with "env" resolved.
func (a *Account) ResolvedMnemonic() (string, error) {
	if a.HDWallet == nil {
		return "", ErrLackOfAccount
	}
	return a.resolveEnv(a.HDWallet.Mnemonic, "ARPA_NODE_HD_ACCOUNT_MNEMONIC")
}

// ResolvedKeystorePassword returns the keystore password with "env" resolved.
func (a *Account) ResolvedKeystorePassword() (string, error) {
	if a.Keystore == nil {
		return "", ErrLackOfAccount
	}
	return a.resolveEnv(a.Keystore.Password, "ARPA_NODE_ACCOUNT_KEYSTORE_PASSWORD")
}

// ResolvedPrivateKey returns the raw private key with "env" resolved.
func (a *Account) ResolvedPrivateKey() (string, error) {
	if a.PrivateKey == nil {
		return "", ErrLackOfAccount
	}
	return a.resolveEnv(*a.PrivateKey, "ARPA_NODE_ACCOUNT_PRIVATE_KEY")
}
