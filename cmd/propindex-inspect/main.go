package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/TheEntropyCollective/propindex/pkg/index"
	"github.com/TheEntropyCollective/propindex/pkg/index/mapping"
	"github.com/TheEntropyCollective/propindex/pkg/infrastructure/config"
	"github.com/TheEntropyCollective/propindex/pkg/infrastructure/logging"
	"github.com/TheEntropyCollective/propindex/pkg/repository"
	"github.com/TheEntropyCollective/propindex/pkg/search"
	"github.com/TheEntropyCollective/propindex/pkg/util"
	"golang.org/x/text/language"
)

func main() {
	var (
		configPath = flag.String("config", "", "Configuration file path")
		instance   = flag.String("instance", "primary", "Index instance to inspect: primary or secondary")
		uri        = flag.String("uri", "", "Dump the document for one URI")
		prefix     = flag.String("prefix", "", "List URIs starting with this prefix")
		limit      = flag.Int("limit", 50, "Maximum URIs to list")
		stats      = flag.Bool("stats", false, "Print instance statistics")
	)
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fail(err)
	}
	logging.InitGlobalLogger(&logging.Config{Level: logging.WarnLevel, Format: logging.TextFormat, Output: os.Stderr})

	path := cfg.Index.PrimaryPath()
	if *instance == "secondary" {
		path = cfg.Index.SecondaryPath()
	}

	tag, err := language.Parse(cfg.Index.Locale)
	if err != nil {
		fail(fmt.Errorf("invalid locale %q: %w", cfg.Index.Locale, err))
	}

	// Property decoding needs the type definitions; without them only
	// envelope and ACL fields are readable.
	typeTree := repository.NewStaticTypeTree()
	if cfg.Index.TypesFile != "" {
		typeTree, err = repository.LoadStaticTypeTree(cfg.Index.TypesFile)
		if err != nil {
			fail(err)
		}
	}
	mapper := mapping.NewDocumentMapper(typeTree, mapping.NewCollation(tag), nil, nil)

	psi, err := index.Open(index.Options{
		Path:        path,
		Mapper:      mapper,
		LockTimeout: cfg.Index.LockTimeout(),
		BatchSize:   cfg.Index.BatchSize,
	})
	if err != nil {
		fail(err)
	}
	defer psi.Close()

	switch {
	case *stats:
		printStats(psi)
	case *uri != "":
		dumpDocument(psi, *uri)
	default:
		listURIs(psi, *prefix, *limit)
	}
}

func printStats(psi *index.PropertySetIndex) {
	count, err := psi.DocCount()
	if err != nil {
		fail(err)
	}
	fmt.Printf("path:       %s\n", psi.Path())
	fmt.Printf("documents:  %d\n", count)
	fmt.Printf("disk size:  %s\n", util.FormatSize(psi.DiskSize()))
}

func dumpDocument(psi *index.PropertySetIndex, rawURI string) {
	uri, err := repository.ParsePath(rawURI)
	if err != nil {
		fail(err)
	}
	accessor, err := index.NewRandomAccessor(psi)
	if err != nil {
		fail(err)
	}
	defer accessor.Close()

	ps, err := accessor.PropertySet(uri, search.All())
	if err != nil {
		fail(err)
	}
	acl, err := accessor.ACL(uri)
	if err != nil {
		fail(err)
	}

	fmt.Printf("uri:  %s\n", ps.URI())
	fmt.Printf("id:   %d\n", ps.ID())
	fmt.Printf("type: %s\n", ps.ResourceType())
	for _, prop := range ps.Properties() {
		fmt.Printf("  %s (%s)", prop.ID(), prop.Type)
		for _, v := range prop.Values {
			fmt.Printf(" %v", v)
		}
		fmt.Println()
	}
	fmt.Printf("acl inherited-from: %d\n", acl.InheritedFrom)
	for _, priv := range acl.Privileges() {
		for _, p := range acl.Principals(priv) {
			fmt.Printf("  %s: %s\n", priv, p.Name)
		}
	}
}

func listURIs(psi *index.PropertySetIndex, prefix string, limit int) {
	var (
		iter *index.IndexIterator
		err  error
	)
	if prefix != "" {
		iter, err = index.NewPrefixIterator(psi, prefix, search.None())
	} else {
		iter, err = index.NewOrderedIterator(psi, search.None())
	}
	if err != nil {
		fail(err)
	}
	defer iter.Close()

	for n := 0; n < limit; n++ {
		ps, err := iter.Next()
		if err != nil {
			fail(err)
		}
		if ps == nil {
			break
		}
		fmt.Println(ps.URI())
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, util.FormatError(err))
	os.Exit(1)
}
