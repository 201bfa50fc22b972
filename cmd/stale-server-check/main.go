package main

import (
	"fmt"
	"io"
	"os"

	"github.com/canonical/cloudsupport"
	"github.com/canonical/cloudsupport/internal/cli"
	"github.com/canonical/cloudsupport/internal/logx"
	"github.com/canonical/cloudsupport/pkg/openstack"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
)

type options struct {
	cloudName  string
	namePrefix string
	warnDays   int
	critDays   int
	ignored    string
	cloudsFile string
	caCert     string
	textfile   string
}

// connectFunc opens a driver for the named cloud
type connectFunc func(cloud string, opts options) (cloudsupport.Driver, error)

func connect(cloud string, opts options) (cloudsupport.Driver, error) {
	conn, err := openstack.Connect(cloud, openstack.Options{
		CloudsFile: opts.cloudsFile,
		CACert:     opts.caCert,
	})
	if err != nil {
		return nil, err
	}
	return conn.Driver(), nil
}

func unknown(w io.Writer, msg string) int {
	fmt.Fprintf(w, "%s: %s\n", cloudsupport.SeverityUnknown, msg)
	return cloudsupport.SeverityUnknown.ExitCode()
}

// check runs the stale server check, writes the plugin output line to w and
// returns the plugin exit code
func check(w io.Writer, opts options, open connectFunc) int {
	if opts.cloudName == "" {
		return unknown(w, "--cloud-name is required")
	}
	if opts.namePrefix == "" {
		return unknown(w, "--name-prefix is required")
	}

	clouds, err := openstack.LoadClouds(opts.cloudsFile)
	if err != nil {
		return unknown(w, err.Error())
	}
	if _, err := clouds.Cloud(opts.cloudName); err != nil {
		return unknown(w, err.Error())
	}

	driver, err := open(opts.cloudName, opts)
	if err != nil {
		return unknown(w, err.Error())
	}

	ctx := cloudsupport.NewContext(driver, nil)
	report, err := ctx.StaleServers(opts.namePrefix, opts.warnDays, opts.critDays, cli.SplitList(opts.ignored))
	if err != nil {
		return unknown(w, err.Error())
	}

	if opts.textfile != "" {
		if err := writeTextfile(opts.textfile, report); err != nil {
			log.WithFields(log.Fields{
				"error": err,
				"path":  opts.textfile,
			}).Warn("failed to write metrics textfile")
		}
	}

	fmt.Fprintln(w, report.String())
	return report.Severity().ExitCode()
}

// writeTextfile records the report for the node exporter textfile collector
func writeTextfile(path string, report *cloudsupport.StaleReport) error {
	registry := prometheus.NewRegistry()

	stale := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "cloudsupport",
		Name:      "stale_servers",
		Help:      "Number of stale test servers by severity.",
	}, []string{"severity"})
	status := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cloudsupport",
		Name:      "stale_check_status",
		Help:      "Exit code of the last stale server check.",
	})
	registry.MustRegister(stale, status)

	stale.WithLabelValues("critical").Set(float64(len(report.Critical)))
	stale.WithLabelValues("warning").Set(float64(len(report.Warning)))
	status.Set(float64(report.Severity().ExitCode()))

	return prometheus.WriteToTextfile(path, registry)
}

func main() {
	opts := options{
		warnDays:   cloudsupport.DefaultStaleWarnDays,
		critDays:   cloudsupport.DefaultStaleCritDays,
		cloudsFile: openstack.DefaultCloudsFile,
	}
	var logLevel string

	flag.StringVar(&opts.cloudName, "cloud-name", "", "cloud name in clouds.yaml")
	flag.StringVar(&opts.namePrefix, "name-prefix", "", "name prefix of test servers")
	flag.IntVar(&opts.warnDays, "warn-days", opts.warnDays, "days after which a server is reported as warning")
	flag.IntVar(&opts.critDays, "crit-days", opts.critDays, "days after which a server is reported as critical")
	flag.StringVar(&opts.ignored, "ignored-servers-uuids", "", "comma separated list of server ids to ignore")
	flag.StringVar(&opts.cloudsFile, "clouds-yaml", opts.cloudsFile, "clouds.yaml with the cloud credentials")
	flag.StringVar(&opts.caCert, "cacert", "", "CA certificate of the cloud endpoints")
	flag.StringVar(&opts.textfile, "textfile", "", "write prometheus textfile collector metrics to this path")
	flag.StringVarP(&logLevel, "log-level", "l", "error", "log level")
	flag.Parse()

	if err := logx.DefaultSetup(logLevel); err != nil {
		os.Exit(unknown(os.Stdout, err.Error()))
	}

	os.Exit(check(os.Stdout, opts, connect))
}
