package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/ticker"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/vulpemventures/funder/internal/core/domain"
	"github.com/vulpemventures/funder/internal/core/ports"
	wallet "github.com/vulpemventures/funder/pkg/single-key-wallet"
)

const DefaultRefreshInterval = time.Minute

type ServiceArgs struct {
	Gateway ports.BlockchainGateway
	Store   ports.WalletStore
	// StaticWallets come from the config file and are never persisted.
	StaticWallets []domain.WalletKey
	BuildInfo     BuildInfo
	// RefreshTicker drives the periodic refresh. Defaults to a ticker with
	// RefreshInterval period.
	RefreshTicker   ticker.Ticker
	RefreshInterval time.Duration
	// Registerer is where metrics are registered. Defaults to a private
	// registry.
	Registerer prometheus.Registerer
}

func (a ServiceArgs) validate() error {
	if a.Gateway == nil {
		return fmt.Errorf("missing blockchain gateway")
	}
	if a.Store == nil {
		return fmt.Errorf("missing wallet store")
	}
	if a.RefreshInterval < 0 {
		return fmt.Errorf("refresh interval must not be negative")
	}
	return nil
}

// FundingService serves a fleet of single-key wallets:
//   - Add and remove wallets at runtime, persisting those not coming from
//     the static configuration through the wallet store.
//   - Refresh balance and utxos of every wallet from the blockchain gateway,
//     periodically and on demand, tracking the connectivity status.
//   - Check whether a wallet can serve a funding request.
//   - Build, sign and broadcast the funding txs of a request.
//
// Every operation, reads included, runs under one exclusive lock so that no
// two requests can ever select the same utxo.
//
// The connectivity status reflects the outcome of the refresh of the last
// wallet processed, or of a liveness probe when there are no wallets.
type FundingService struct {
	lock *sync.Mutex

	gateway      ports.BlockchainGateway
	store        ports.WalletStore
	network      domain.Network
	wallets      []*domain.Wallet
	staticIDs    map[string]struct{}
	dynamicKeys  []domain.WalletKey
	connectivity domain.ConnectivityStatus
	lastUpdate   time.Time
	buildInfo    BuildInfo

	refreshTicker ticker.Ticker
	handlers      *handlerMap
	events        *eventQueue
	metrics       *metrics
	runLock       *sync.Mutex
	quit          chan struct{}
	wg            *sync.WaitGroup
	started       bool

	log  func(format string, a ...interface{})
	warn func(err error, format string, a ...interface{})
}

// NewFundingService fails if the blockchain gateway is not reachable or if
// any static wallet is invalid. Dynamic wallets that can not be restored are
// skipped with a warning.
func NewFundingService(
	ctx context.Context, args ServiceArgs,
) (*FundingService, error) {
	if err := args.validate(); err != nil {
		return nil, fmt.Errorf("invalid args: %s", err)
	}

	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("funding service: %s", format)
		log.Debugf(format, a...)
	}
	warnFn := func(err error, format string, a ...interface{}) {
		format = fmt.Sprintf("funding service: %s", format)
		log.WithError(err).Warnf(format, a...)
	}

	network, err := domain.ParseNetwork(args.Gateway.Network().String())
	if err != nil {
		return nil, err
	}

	if err := args.Gateway.GetBlockHeaders(ctx); err != nil {
		return nil, fmt.Errorf("unable to connect to blockchain: %w", err)
	}

	registerer := args.Registerer
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	m, err := newMetrics(registerer)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %s", err)
	}

	refreshTicker := args.RefreshTicker
	if refreshTicker == nil {
		interval := args.RefreshInterval
		if interval == 0 {
			interval = DefaultRefreshInterval
		}
		refreshTicker = ticker.New(interval)
	}

	svc := &FundingService{
		lock:          &sync.Mutex{},
		gateway:       args.Gateway,
		store:         args.Store,
		network:       network,
		wallets:       make([]*domain.Wallet, 0),
		staticIDs:     make(map[string]struct{}),
		dynamicKeys:   make([]domain.WalletKey, 0),
		connectivity:  domain.ConnectivityUnknown,
		buildInfo:     args.BuildInfo.withDefaults(),
		refreshTicker: refreshTicker,
		handlers:      newHandlerMap(),
		events:        newEventQueue(),
		metrics:       m,
		runLock:       &sync.Mutex{},
		wg:            &sync.WaitGroup{},
		log:           logFn,
		warn:          warnFn,
	}

	for _, key := range args.StaticWallets {
		if _, ok := svc.staticIDs[key.ClientID]; ok {
			return nil, fmt.Errorf(
				"%w: static client %s", domain.ErrDuplicateClient, key.ClientID,
			)
		}
		w, err := domain.NewWallet(key.ClientID, key.WifKey, network)
		if err != nil {
			return nil, err
		}
		svc.wallets = append(svc.wallets, w)
		svc.staticIDs[key.ClientID] = struct{}{}
	}

	dynamicKeys, err := args.Store.Load(ctx)
	if err != nil {
		svc.warn(err, "failed to load dynamic wallets, starting without them")
	}
	for _, key := range dynamicKeys {
		if svc.findWallet(key.ClientID) != nil {
			svc.warn(
				domain.ErrDuplicateClient,
				"skipping dynamic wallet %s", key.ClientID,
			)
			continue
		}
		w, err := domain.NewWallet(key.ClientID, key.WifKey, network)
		if err != nil {
			svc.warn(err, "skipping dynamic wallet %s", key.ClientID)
			continue
		}
		svc.wallets = append(svc.wallets, w)
		svc.dynamicKeys = append(svc.dynamicKeys, key)
	}

	svc.metrics.wallets.Set(float64(len(svc.wallets)))
	svc.log(
		"loaded %d static and %d dynamic wallets on %s",
		len(svc.staticIDs), len(svc.dynamicKeys), network,
	)

	return svc, nil
}

// Start refreshes all wallets once, then keeps refreshing them in
// background at every tick. The service can be started again after Stop.
func (fs *FundingService) Start() {
	fs.runLock.Lock()
	defer fs.runLock.Unlock()

	fs.lock.Lock()
	if fs.started {
		fs.lock.Unlock()
		return
	}
	fs.started = true
	quit := make(chan struct{})
	fs.quit = quit
	fs.refreshAll(context.Background())
	fs.lock.Unlock()

	fs.refreshTicker.Resume()
	fs.wg.Add(1)
	go fs.refreshLoop(quit)
}

// Stop stops the periodic refresh and waits for the one in progress, if any.
func (fs *FundingService) Stop() {
	fs.runLock.Lock()
	defer fs.runLock.Unlock()

	fs.lock.Lock()
	if !fs.started {
		fs.lock.Unlock()
		return
	}
	fs.started = false
	quit := fs.quit
	fs.quit = nil
	fs.lock.Unlock()

	close(quit)
	fs.wg.Wait()
	fs.refreshTicker.Pause()
}

// RegisterHandlerForFundingEvent adds a handler for the given event type.
// Handlers run in background, one event at a time and in the order the
// events happened.
func (fs *FundingService) RegisterHandlerForFundingEvent(
	eventType FundingEventType, handler FundingEventHandler,
) {
	fs.handlers.set(int(eventType), handler)
}

// AddWallet adds and persists a new wallet. Nothing changes if the key is
// invalid or if it can not be persisted.
func (fs *FundingService) AddWallet(
	ctx context.Context, clientID, wifKey string,
) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if fs.findWallet(clientID) != nil {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateClient, clientID)
	}

	w, err := domain.NewWallet(clientID, wifKey, fs.network)
	if err != nil {
		return err
	}

	keys := append(
		append(make([]domain.WalletKey, 0, len(fs.dynamicKeys)+1), fs.dynamicKeys...),
		domain.WalletKey{ClientID: clientID, WifKey: wifKey},
	)
	if err := fs.store.Save(ctx, keys); err != nil {
		return fmt.Errorf("failed to persist wallet %s: %w", clientID, err)
	}
	fs.dynamicKeys = keys
	fs.wallets = append(fs.wallets, w)

	if err := fs.refreshWallet(ctx, w); err != nil {
		fs.warn(err, "failed to fetch utxos of new wallet %s", clientID)
	}

	fs.metrics.wallets.Set(float64(len(fs.wallets)))
	fs.log("added wallet %s with address %s", clientID, w.Address())
	fs.publishEvent(FundingEvent{EventType: ClientAdded, ClientID: clientID})
	return nil
}

// RemoveWallet stops serving the given client. It is a no-op if the client
// is unknown.
func (fs *FundingService) RemoveWallet(ctx context.Context, clientID string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	return fs.removeWallet(ctx, clientID)
}

// DeleteClient is like RemoveWallet, but fails for unknown clients.
func (fs *FundingService) DeleteClient(ctx context.Context, clientID string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if fs.findWallet(clientID) == nil {
		return fmt.Errorf("%w: %s", domain.ErrClientNotFound, clientID)
	}
	return fs.removeWallet(ctx, clientID)
}

// RefreshAll re-fetches balance and utxos of every wallet and updates the
// connectivity status.
func (fs *FundingService) RefreshAll(ctx context.Context) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	fs.refreshAll(ctx)
}

// CheckSolvency tells whether the wallet of the given client can serve the
// request. The second value is false if the client is unknown or its wallet
// has no utxos.
func (fs *FundingService) CheckSolvency(req domain.FundRequest) (bool, bool) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	return fs.checkSolvency(req)
}

// CreateFundingOutpoints builds and broadcasts the funding txs of the
// request. If a broadcast fails, a *domain.BroadcastError lists the
// outpoints already broadcast and the wallet cache is left as if only those
// txs were built.
func (fs *FundingService) CreateFundingOutpoints(
	ctx context.Context, req domain.FundRequest,
) (*FundingResult, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	result, err := fs.createFundingOutpoints(ctx, req)
	fs.afterFunding(req.ClientID, result, err)
	return result, err
}

// Fund validates the request in the order unknown client, zero satoshi,
// zero outpoints, malformed locking script, insufficient balance, then
// funds it.
func (fs *FundingService) Fund(
	ctx context.Context, args FundArgs,
) (*FundingResult, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	logger := log.WithField("request_id", RequestID(ctx))

	result, err := fs.fund(ctx, args)
	if err != nil {
		logger.WithError(err).Infof(
			"funding request of client %s failed", args.ClientID,
		)
	} else {
		logger.Infof(
			"funded %d outpoints of %d sat for client %s",
			len(result.Outpoints), args.Satoshi, args.ClientID,
		)
	}
	fs.afterFunding(args.ClientID, result, err)
	return result, err
}

func (fs *FundingService) GetStatus() Status {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	return Status{
		BuildInfo:    fs.buildInfo,
		Connectivity: fs.connectivity,
		LastUpdate:   fs.lastUpdate,
	}
}

func (fs *FundingService) GetBalance(clientID string) (*domain.Balance, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	w := fs.findWallet(clientID)
	if w == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrClientNotFound, clientID)
	}
	balance := w.Balance()
	return &balance, nil
}

func (fs *FundingService) GetAddress(clientID string) (string, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	w := fs.findWallet(clientID)
	if w == nil {
		return "", fmt.Errorf("%w: %s", domain.ErrClientNotFound, clientID)
	}
	return w.Address(), nil
}

// ListClients returns the ids of the served clients, in insertion order.
func (fs *FundingService) ListClients() []string {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	ids := make([]string, 0, len(fs.wallets))
	for _, w := range fs.wallets {
		ids = append(ids, w.ClientID)
	}
	return ids
}

func (fs *FundingService) refreshLoop(quit chan struct{}) {
	defer fs.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		<-quit
		cancel()
	}()

	for {
		select {
		case <-quit:
			return
		case <-fs.refreshTicker.Ticks():
			fs.RefreshAll(ctx)
		}
	}
}

func (fs *FundingService) refreshAll(ctx context.Context) {
	prevStatus := fs.connectivity

	if len(fs.wallets) <= 0 {
		fs.connectivity = domain.ConnectivityConnected
		if err := fs.gateway.GetBlockHeaders(ctx); err != nil {
			fs.warn(err, "liveness probe failed")
			fs.connectivity = domain.ConnectivityFailed
		}
		fs.lastUpdate = time.Now()
		fs.metrics.observeRefresh(fs.connectivity)
	}

	for _, w := range fs.wallets {
		fs.connectivity = domain.ConnectivityConnected
		if err := fs.refreshWallet(ctx, w); err != nil {
			fs.warn(err, "failed to refresh wallet %s", w.ClientID)
			fs.connectivity = domain.ConnectivityFailed
		}
		fs.lastUpdate = time.Now()
		fs.metrics.observeRefresh(fs.connectivity)
	}

	if fs.connectivity != prevStatus {
		fs.log("connectivity status changed from %s to %s", prevStatus, fs.connectivity)
		fs.publishEvent(FundingEvent{
			EventType:    ConnectivityChanged,
			Connectivity: fs.connectivity,
		})
	}
}

// refreshWallet leaves the wallet untouched if any of the queries fails.
func (fs *FundingService) refreshWallet(ctx context.Context, w *domain.Wallet) error {
	balance, err := fs.gateway.GetBalance(ctx, w.Address())
	if err != nil {
		return err
	}
	utxos, err := fs.gateway.GetUtxos(ctx, w.Address())
	if err != nil {
		return err
	}

	w.Update(*balance, utxos)
	fs.metrics.observeWallet(w)
	return nil
}

func (fs *FundingService) removeWallet(ctx context.Context, clientID string) error {
	index := -1
	for i, w := range fs.wallets {
		if w.ClientID == clientID {
			index = i
			break
		}
	}
	if index < 0 {
		return nil
	}

	keyIndex := -1
	for i, k := range fs.dynamicKeys {
		if k.ClientID == clientID {
			keyIndex = i
			break
		}
	}
	if keyIndex >= 0 {
		keys := make([]domain.WalletKey, 0, len(fs.dynamicKeys)-1)
		keys = append(keys, fs.dynamicKeys[:keyIndex]...)
		keys = append(keys, fs.dynamicKeys[keyIndex+1:]...)
		if err := fs.store.Save(ctx, keys); err != nil {
			return fmt.Errorf("failed to persist removal of wallet %s: %w", clientID, err)
		}
		fs.dynamicKeys = keys
	}

	wallets := make([]*domain.Wallet, 0, len(fs.wallets)-1)
	wallets = append(wallets, fs.wallets[:index]...)
	wallets = append(wallets, fs.wallets[index+1:]...)
	fs.wallets = wallets

	fs.metrics.wallets.Set(float64(len(fs.wallets)))
	fs.metrics.forgetWallet(clientID)
	fs.log("removed wallet %s", clientID)
	fs.publishEvent(FundingEvent{EventType: ClientRemoved, ClientID: clientID})
	return nil
}

func (fs *FundingService) checkSolvency(req domain.FundRequest) (bool, bool) {
	w := fs.findWallet(req.ClientID)
	if w == nil {
		return false, false
	}
	return w.HasSufficientBalance(
		req.SatoshiPerOutput, req.OutputCount, req.MultiTx, len(req.LockingScript),
	)
}

func (fs *FundingService) fund(
	ctx context.Context, args FundArgs,
) (*FundingResult, error) {
	if fs.findWallet(args.ClientID) == nil {
		return nil, fmt.Errorf("%w %s", domain.ErrUnknownClient, args.ClientID)
	}
	if args.Satoshi == 0 {
		return nil, domain.ErrZeroSatoshi
	}
	if args.OutputCount == 0 {
		return nil, domain.ErrZeroOutputCount
	}
	lockingScript, err := domain.ParseLockingScript(args.LockingScript)
	if err != nil {
		return nil, err
	}

	req := domain.FundRequest{
		ClientID:         args.ClientID,
		SatoshiPerOutput: args.Satoshi,
		OutputCount:      args.OutputCount,
		MultiTx:          args.MultiTx,
		LockingScript:    lockingScript,
	}
	if solvent, known := fs.checkSolvency(req); !known || !solvent {
		return nil, fmt.Errorf(
			"%w: insufficient client balance to create funding transactions",
			domain.ErrInsufficientFunds,
		)
	}

	return fs.createFundingOutpoints(ctx, req)
}

func (fs *FundingService) createFundingOutpoints(
	ctx context.Context, req domain.FundRequest,
) (*FundingResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	w := fs.findWallet(req.ClientID)
	if w == nil {
		return nil, fmt.Errorf("%w %s", domain.ErrUnknownClient, req.ClientID)
	}

	snapshot := w.Snapshot()

	if req.IsMultiTx() {
		txs, err := w.CreateMultipleFundingTxs(
			req.SatoshiPerOutput, req.OutputCount, req.LockingScript,
		)
		if err != nil {
			w.Restore(snapshot)
			return nil, err
		}
		if len(txs) <= 0 {
			w.Restore(snapshot)
			return nil, domain.ErrNoSpendableUtxo
		}
		if len(txs) < int(req.OutputCount) {
			fs.log(
				"wallet %s ran out of utxos after %d of %d txs",
				w.ClientID, len(txs), req.OutputCount,
			)
		}

		outpoints := make([]domain.Outpoint, 0, len(txs))
		for i, tx := range txs {
			if err := fs.broadcast(ctx, tx); err != nil {
				fs.rollback(w, snapshot, txs[:i])
				return nil, &domain.BroadcastError{
					Outpoints: outpoints,
					Txs:       txs[:i],
					Err:       err,
				}
			}
			outpoints = append(outpoints, domain.Outpoint{
				Hash: tx.TxHash().String(), Index: 1,
			})
		}
		return &FundingResult{Outpoints: outpoints, Txs: txs}, nil
	}

	tx, err := w.CreateFundingTx(
		req.SatoshiPerOutput, req.OutputCount, req.LockingScript,
	)
	if err != nil {
		w.Restore(snapshot)
		return nil, err
	}
	if err := fs.broadcast(ctx, tx); err != nil {
		w.Restore(snapshot)
		return nil, &domain.BroadcastError{Err: err}
	}

	return &FundingResult{
		Outpoints: domain.FundedOutpoints(tx),
		Txs:       []*wire.MsgTx{tx},
	}, nil
}

func (fs *FundingService) broadcast(ctx context.Context, tx *wire.MsgTx) error {
	txHex, err := wallet.TxToHex(tx)
	if err != nil {
		return err
	}
	txid, err := fs.gateway.BroadcastTransaction(ctx, txHex)
	if err != nil {
		return err
	}

	if localTxid := tx.TxHash().String(); !strings.EqualFold(txid, localTxid) {
		fs.warn(
			fmt.Errorf("txid mismatch"),
			"gateway returned %s for tx %s", txid, localTxid,
		)
	}
	fs.log("broadcasted funding tx %s", tx.TxHash())
	return nil
}

// rollback restores the wallet cache as if only the given txs were built.
func (fs *FundingService) rollback(
	w *domain.Wallet, snapshot domain.WalletSnapshot, broadcasted []*wire.MsgTx,
) {
	w.Restore(snapshot)
	for _, tx := range broadcasted {
		if err := w.ApplyFundingTx(tx); err != nil {
			fs.warn(err, "failed to restore cache of wallet %s", w.ClientID)
		}
	}
}

func (fs *FundingService) afterFunding(
	clientID string, result *FundingResult, err error,
) {
	var outpoints []domain.Outpoint
	if result != nil {
		outpoints = result.Outpoints
	}
	var broadcastErr *domain.BroadcastError
	if errors.As(err, &broadcastErr) {
		outpoints = broadcastErr.Outpoints
	}

	fs.metrics.observeFunding(len(outpoints), err)

	if err != nil {
		fs.publishEvent(FundingEvent{
			EventType: FundingFailed,
			ClientID:  clientID,
			Outpoints: outpoints,
			Error:     err.Error(),
		})
		return
	}
	fs.publishEvent(FundingEvent{
		EventType: FundingSucceeded,
		ClientID:  clientID,
		Outpoints: outpoints,
	})
}

func (fs *FundingService) findWallet(clientID string) *domain.Wallet {
	for _, w := range fs.wallets {
		if w.ClientID == clientID {
			return w
		}
	}
	return nil
}

func (fs *FundingService) publishEvent(event FundingEvent) {
	event.Timestamp = time.Now()
	handlers, ok := fs.handlers.get(int(event.EventType))
	if !ok {
		return
	}
	fs.events.push(event, handlers)
}

type requestIDKey struct{}

// ContextWithRequestID attaches the given id to the context, to correlate
// the logs of one funding request.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id attached to the context, or a new random one.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && len(id) > 0 {
		return id
	}
	return uuid.NewString()
}

// handlerMap is a util type to prevent race conditions when registering
// or retrieving handlers for events.
type handlerMap struct {
	handlersByEventType map[int][]interface{}
	lock                *sync.RWMutex
}

func newHandlerMap() *handlerMap {
	return &handlerMap{
		handlersByEventType: make(map[int][]interface{}),
		lock:                &sync.RWMutex{},
	}
}

func (m *handlerMap) set(key int, val interface{}) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.handlersByEventType[key] = append(m.handlersByEventType[key], val)
}

func (m *handlerMap) get(key int) ([]interface{}, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	val, ok := m.handlersByEventType[key]
	return val, ok
}

// eventQueue delivers the published events to their handlers without
// blocking the publisher. A single worker drains the queue, so handlers see
// the events in publishing order.
type eventQueue struct {
	lock    *sync.Mutex
	pending []queuedEvent
	running bool
}

type queuedEvent struct {
	event    FundingEvent
	handlers []interface{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{lock: &sync.Mutex{}}
}

func (q *eventQueue) push(event FundingEvent, handlers []interface{}) {
	q.lock.Lock()
	defer q.lock.Unlock()

	q.pending = append(q.pending, queuedEvent{event, handlers})
	if q.running {
		return
	}
	q.running = true
	go q.drain()
}

func (q *eventQueue) drain() {
	for {
		q.lock.Lock()
		if len(q.pending) == 0 {
			q.running = false
			q.lock.Unlock()
			return
		}
		next := q.pending[0]
		q.pending = q.pending[1:]
		q.lock.Unlock()

		for _, handler := range next.handlers {
			handler.(FundingEventHandler)(next.event)
		}
	}
}
