package lattice

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/lattice/internal/logging"
	"github.com/arloliu/lattice/internal/metrics"
	"github.com/arloliu/lattice/policy"
	"github.com/arloliu/lattice/scheduler"
	"github.com/arloliu/lattice/types"
)

// ConfigMode is the cluster's configuration mode. A cluster starts
// uncommitted and commits permanently to either legacy discrete settings
// or named execution profiles on first use of the corresponding API; the
// two modes are mutually exclusive for the cluster's lifetime and there
// is no transition between them.
type ConfigMode int

const (
	// ConfigModeUncommitted means neither configuration API has been used.
	ConfigModeUncommitted ConfigMode = iota
	// ConfigModeLegacy means discrete cluster/session settings are in use.
	ConfigModeLegacy
	// ConfigModeProfiles means named execution profiles are in use.
	ConfigModeProfiles
)

// String returns a label for the mode.
func (m ConfigMode) String() string {
	switch m {
	case ConfigModeUncommitted:
		return "uncommitted"
	case ConfigModeLegacy:
		return "legacy"
	case ConfigModeProfiles:
		return "profiles"
	default:
		return "unknown"
	}
}

// Bounds on concurrent in-flight requests per connection, imposed by the
// protocol's stream-id space.
const (
	minRequestsCeiling = 126
	maxRequestsCeiling = 127

	defaultMinRequests = 5
	defaultMaxRequests = 100
)

// Config holds cluster-level configuration assembled from options.
type Config struct {
	// Hosts is the initial set of contact points fed to load-balancing
	// policies.
	Hosts []types.Host

	// LoadBalancingPolicy is the legacy discrete load-balancing policy.
	// Setting it commits the cluster to legacy mode and conflicts with
	// ExecutionProfiles.
	LoadBalancingPolicy policy.LoadBalancingPolicy

	// DefaultRetryPolicy is the legacy discrete retry policy. Setting it
	// commits the cluster to legacy mode and conflicts with
	// ExecutionProfiles.
	DefaultRetryPolicy policy.RetryPolicy

	// ExecutionProfiles are named profiles registered at construction.
	// Setting any commits the cluster to profiles mode.
	ExecutionProfiles map[string]ExecutionProfile

	// MaxRetries caps policy-directed retries per request; 0 means no cap
	// beyond what the retry policy itself allows.
	MaxRetries int

	// RetryBackoff is the scheduler delay applied before a policy-directed
	// resend. Zero means immediate.
	RetryBackoff time.Duration

	// Metrics collects engine metrics. Defaults to a no-op collector.
	Metrics types.MetricsCollector

	// Logger receives structured engine logs. Defaults to a no-op logger.
	Logger types.Logger
}

// Option configures a Config.
type Option func(*Config)

// WithHosts sets the initial contact points.
//
// Parameters:
//   - hosts: Initial live hosts for load-balancing policies
//
// Returns:
//   - Option: Configuration option
func WithHosts(hosts ...types.Host) Option {
	return func(c *Config) {
		c.Hosts = hosts
	}
}

// WithLoadBalancingPolicy sets the legacy discrete load-balancing policy.
//
// This is part of the legacy configuration API: using it commits the
// cluster to legacy mode and conflicts with WithExecutionProfiles.
//
// Parameters:
//   - lbp: The load-balancing policy
//
// Returns:
//   - Option: Configuration option
func WithLoadBalancingPolicy(lbp policy.LoadBalancingPolicy) Option {
	return func(c *Config) {
		c.LoadBalancingPolicy = lbp
	}
}

// WithDefaultRetryPolicy sets the legacy discrete retry policy.
//
// This is part of the legacy configuration API: using it commits the
// cluster to legacy mode and conflicts with WithExecutionProfiles.
//
// Parameters:
//   - rp: The retry policy
//
// Returns:
//   - Option: Configuration option
func WithDefaultRetryPolicy(rp policy.RetryPolicy) Option {
	return func(c *Config) {
		c.DefaultRetryPolicy = rp
	}
}

// WithExecutionProfiles registers named execution profiles at
// construction and commits the cluster to profiles mode. A profile under
// DefaultProfileName replaces the built-in default profile.
//
// Parameters:
//   - profiles: Profiles keyed by name
//
// Returns:
//   - Option: Configuration option
func WithExecutionProfiles(profiles map[string]ExecutionProfile) Option {
	return func(c *Config) {
		c.ExecutionProfiles = profiles
	}
}

// WithMaxRetries caps policy-directed retries per request.
//
// Parameters:
//   - n: Maximum retries; 0 disables the cap
//
// Returns:
//   - Option: Configuration option
func WithMaxRetries(n int) Option {
	return func(c *Config) {
		c.MaxRetries = n
	}
}

// WithRetryBackoff sets the scheduler delay before policy-directed
// resends.
//
// Parameters:
//   - d: Backoff duration; 0 resends immediately
//
// Returns:
//   - Option: Configuration option
func WithRetryBackoff(d time.Duration) Option {
	return func(c *Config) {
		c.RetryBackoff = d
	}
}

// WithMetrics sets the metrics collector.
//
// If not set, a no-op collector is used that discards all metrics.
// Use contrib/metrics/vm.New() for VictoriaMetrics integration.
//
// Parameters:
//   - collector: The metrics collector implementation
//
// Returns:
//   - Option: Configuration option
func WithMetrics(collector types.MetricsCollector) Option {
	return func(c *Config) {
		c.Metrics = collector
	}
}

// WithLogger sets the structured logger.
//
// If not set, a no-op logger is used that discards all messages.
// The logger interface is compatible with zap.SugaredLogger.
//
// Parameters:
//   - logger: The logger implementation
//
// Returns:
//   - Option: Configuration option
func WithLogger(logger types.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// Cluster owns the global policy defaults, the execution-profile
// registry, the per-host-distance connection bounds, and the deferred-task
// scheduler. Sessions are created from a Cluster and share its
// configuration mode.
//
// Cluster is safe for concurrent use from multiple goroutines.
type Cluster struct {
	config *Config
	sender Sender
	sched  *scheduler.Scheduler

	// mu guards the configuration mode, legacy defaults, and connection
	// bounds. The profile registry has its own concurrent map; mu still
	// serializes registration so mode commitment and registry writes
	// cannot race.
	mu          sync.Mutex
	mode        ConfigMode
	legacyLBP   policy.LoadBalancingPolicy
	legacyRetry policy.RetryPolicy
	profiles    *xsync.MapOf[string, ExecutionProfile]
	minRequests map[types.HostDistance]int
	maxRequests map[types.HostDistance]int

	closed atomic.Bool
}

// NewCluster creates a Cluster using the given connection-layer sender.
//
// Constructing with both legacy discrete parameters
// (WithLoadBalancingPolicy, WithDefaultRetryPolicy) and
// WithExecutionProfiles fails with a configuration error: the two
// configuration APIs are mutually exclusive. Supplying either commits the
// cluster to the corresponding mode immediately; otherwise the mode stays
// uncommitted until first use of a mode-specific API.
//
// The cluster starts its scheduler; call Close to release it.
//
// Parameters:
//   - sender: The connection/codec layer (required)
//   - opts: Optional configuration options
//
// Returns:
//   - *Cluster: A new cluster
//   - error: types.ErrNilSender, or a configuration error on conflicting
//     options
func NewCluster(sender Sender, opts ...Option) (*Cluster, error) {
	if sender == nil {
		return nil, types.ErrNilSender
	}

	config := &Config{}
	for _, opt := range opts {
		opt(config)
	}

	if config.Metrics == nil {
		config.Metrics = metrics.NewNopMetrics()
	}
	if config.Logger == nil {
		config.Logger = logging.NewNopLogger()
	}

	hasLegacy := config.LoadBalancingPolicy != nil || config.DefaultRetryPolicy != nil
	hasProfiles := len(config.ExecutionProfiles) > 0
	if hasLegacy && hasProfiles {
		return nil, &types.Error{
			Kind:    types.KindConfiguration,
			Message: "legacy parameters and execution profiles cannot be used together",
		}
	}

	c := &Cluster{
		config:      config,
		sender:      sender,
		sched:       scheduler.New(scheduler.WithLogger(config.Logger), scheduler.WithMetrics(config.Metrics)),
		profiles:    xsync.NewMapOf[string, ExecutionProfile](),
		minRequests: map[types.HostDistance]int{types.DistanceLocal: defaultMinRequests, types.DistanceRemote: defaultMinRequests},
		maxRequests: map[types.HostDistance]int{types.DistanceLocal: defaultMaxRequests, types.DistanceRemote: defaultMaxRequests},
	}

	switch {
	case hasLegacy:
		c.mode = ConfigModeLegacy
		c.legacyLBP = config.LoadBalancingPolicy
		c.legacyRetry = config.DefaultRetryPolicy
	case hasProfiles:
		c.mode = ConfigModeProfiles
		for name, p := range config.ExecutionProfiles {
			c.profiles.Store(name, p.normalized())
		}
	}

	// The default profile always exists; in legacy and uncommitted modes
	// it carries the discrete defaults.
	if _, ok := c.profiles.Load(DefaultProfileName); !ok {
		def := NewExecutionProfile()
		if c.legacyLBP != nil {
			def.LoadBalancingPolicy = c.legacyLBP
		}
		if c.legacyRetry != nil {
			def.RetryPolicy = c.legacyRetry
		}
		c.profiles.Store(DefaultProfileName, def)
	}

	// Feed contact points to every registered load-balancing policy.
	if len(config.Hosts) > 0 {
		c.profiles.Range(func(_ string, p ExecutionProfile) bool {
			p.LoadBalancingPolicy.SetHosts(config.Hosts)
			return true
		})
	}

	if err := c.sched.Start(); err != nil {
		return nil, err
	}

	config.Logger.Debug("cluster created", "mode", c.mode.String(), "hosts", len(config.Hosts))

	return c, nil
}

// Mode returns the cluster's current configuration mode.
func (c *Cluster) Mode() ConfigMode {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.mode
}

// commitMode attempts the one-way transition to target, failing when the
// cluster has already committed to the other mode. api names the call
// being attempted, for the error message.
func (c *Cluster) commitMode(target ConfigMode, api string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.commitModeLocked(target, api)
}

func (c *Cluster) commitModeLocked(target ConfigMode, api string) error {
	switch c.mode {
	case ConfigModeUncommitted:
		c.mode = target
		c.config.Logger.Debug("configuration mode committed", "mode", target.String(), "api", api)
		return nil
	case target:
		return nil
	default:
		return &types.Error{
			Kind: types.KindConfiguration,
			Message: fmt.Sprintf("%s requires %s mode, but the cluster is committed to %s settings",
				api, target, c.mode),
		}
	}
}

// AddExecutionProfile registers a named profile, committing the cluster
// to profiles mode. It fails when any legacy setting has been used, or
// when the name is already registered.
//
// Parameters:
//   - name: The profile name
//   - profile: The profile value (copied; later mutation has no effect)
//
// Returns:
//   - error: A configuration error on mode conflict or duplicate name
func (c *Cluster) AddExecutionProfile(name string, profile ExecutionProfile) error {
	if c.closed.Load() {
		return types.ErrClusterClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.commitModeLocked(ConfigModeProfiles, "AddExecutionProfile"); err != nil {
		return err
	}
	if _, exists := c.profiles.Load(name); exists {
		return &types.Error{
			Kind:    types.KindConfiguration,
			Message: fmt.Sprintf("execution profile %q already exists", name),
		}
	}

	normalized := profile.normalized()
	if len(c.config.Hosts) > 0 {
		normalized.LoadBalancingPolicy.SetHosts(c.config.Hosts)
	}
	c.profiles.Store(name, normalized)

	return nil
}

// Profile returns the registered profile for name.
//
// Parameters:
//   - name: The profile name
//
// Returns:
//   - ExecutionProfile: The registered profile
//   - bool: Whether the name was registered
func (c *Cluster) Profile(name string) (ExecutionProfile, bool) {
	return c.profiles.Load(name)
}

// SetMinRequestsPerConnection sets the minimum concurrent in-flight
// requests per connection for hosts at the given distance. Validation
// failures leave the existing bound untouched.
//
// Parameters:
//   - distance: The host distance class (local or remote)
//   - n: The new minimum, in [0, 126] and below the current maximum
//
// Returns:
//   - error: A configuration error when the value is out of range
func (c *Cluster) SetMinRequestsPerConnection(distance types.HostDistance, n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if distance == types.DistanceIgnored {
		return &types.Error{
			Kind:    types.KindConfiguration,
			Message: "connections are not maintained to ignored hosts",
		}
	}
	if n < 0 || n > minRequestsCeiling {
		return &types.Error{
			Kind:    types.KindConfiguration,
			Message: fmt.Sprintf("min_requests must be in [0, %d], got %d", minRequestsCeiling, n),
		}
	}
	if n >= c.maxRequests[distance] {
		return &types.Error{
			Kind:    types.KindConfiguration,
			Message: fmt.Sprintf("min_requests %d must be below max_requests %d", n, c.maxRequests[distance]),
		}
	}

	c.minRequests[distance] = n

	return nil
}

// SetMaxRequestsPerConnection sets the maximum concurrent in-flight
// requests per connection for hosts at the given distance. Validation
// failures leave the existing bound untouched.
//
// Parameters:
//   - distance: The host distance class (local or remote)
//   - n: The new maximum, in [1, 127] and above the current minimum
//
// Returns:
//   - error: A configuration error when the value is out of range
func (c *Cluster) SetMaxRequestsPerConnection(distance types.HostDistance, n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if distance == types.DistanceIgnored {
		return &types.Error{
			Kind:    types.KindConfiguration,
			Message: "connections are not maintained to ignored hosts",
		}
	}
	if n < 1 || n > maxRequestsCeiling {
		return &types.Error{
			Kind:    types.KindConfiguration,
			Message: fmt.Sprintf("max_requests must be in [1, %d], got %d", maxRequestsCeiling, n),
		}
	}
	if n <= c.minRequests[distance] {
		return &types.Error{
			Kind:    types.KindConfiguration,
			Message: fmt.Sprintf("max_requests %d must be above min_requests %d", n, c.minRequests[distance]),
		}
	}

	c.maxRequests[distance] = n

	return nil
}

// MinRequestsPerConnection returns the minimum in-flight bound for the
// given distance.
func (c *Cluster) MinRequestsPerConnection(distance types.HostDistance) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.minRequests[distance]
}

// MaxRequestsPerConnection returns the maximum in-flight bound for the
// given distance.
func (c *Cluster) MaxRequestsPerConnection(distance types.HostDistance) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.maxRequests[distance]
}

// Connect creates a new Session bound to this cluster.
//
// Returns:
//   - *Session: A new session
//   - error: types.ErrClusterClosed if the cluster has been closed
func (c *Cluster) Connect() (*Session, error) {
	if c.closed.Load() {
		return nil, types.ErrClusterClosed
	}

	return newSession(c), nil
}

// Close stops the scheduler and marks the cluster closed. In-flight
// requests that depend on scheduled work (retries, deadlines) will not
// make further progress; close sessions first.
func (c *Cluster) Close() {
	if c.closed.Swap(true) {
		return
	}
	c.sched.Stop()
	c.config.Logger.Debug("cluster closed")
}
