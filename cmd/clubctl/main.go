package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/club-booking-client/booking"
	"github.com/jrsteele09/club-booking-client/client"
	"github.com/jrsteele09/club-booking-client/courses"
	"github.com/jrsteele09/club-booking-client/internal/config"
	clienterrors "github.com/jrsteele09/club-booking-client/internal/errors"
)

const dateLayout = "2006-01-02"

func main() {
	var (
		envFile string
		quiet   bool
	)
	flag.StringVar(&envFile, "env", ".env", "Path to a .env file")
	flag.BoolVar(&quiet, "q", false, "Do not print the banner")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}

	config.LoadDotEnv(envFile)
	c := config.New()
	if !quiet {
		displayAppname(c.GetAppName())
	}
	if err := run(c, args[0], args[1:]); err != nil {
		log.Fatalf("%s: %s\n", args[0], describe(err))
	}
}

func run(c config.Config, command string, args []string) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	cl, err := client.New(c, client.WithLoginRedirect(func(reason string) {
		log.Printf("Signed out (%s), run: clubctl login <username>\n", reason)
	}))
	if err != nil {
		return err
	}
	defer cl.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if command != "login" && command != "verify" {
		if _, err := cl.Start(ctx); err != nil {
			return err
		}
	}

	switch command {
	case "login":
		return login(ctx, cl, args)
	case "verify":
		return verify(ctx, cl, args)
	case "logout":
		return cl.Auth.Logout(ctx)
	case "whoami":
		return whoami(ctx, cl)
	case "courses":
		list, err := cl.Courses.List(ctx)
		if err != nil {
			return err
		}
		return printView(cl.Booking.Track(ctx, list))
	case "week":
		return week(ctx, cl, args)
	case "book", "cancel":
		return mutate(ctx, cl, command, args)
	case "status":
		return status(ctx, cl, args)
	case "watch":
		return watch(ctx, cl, c)
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func login(ctx context.Context, cl *client.Client, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: clubctl login <username> [password]")
	}
	password := os.Getenv("CLUB_PASSWORD")
	if len(args) > 1 {
		password = args[1]
	}
	sess, err := cl.Auth.Login(ctx, args[0], password)
	if err != nil {
		return err
	}
	fmt.Printf("Signed in as %s (%s)\n", sess.Identity.Username, sess.Identity.Role)
	return nil
}

func verify(ctx context.Context, cl *client.Client, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: clubctl verify <userId> <code>")
	}
	sess, err := cl.Auth.VerifyEmail(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	if sess == nil {
		fmt.Println("Email verified, you can now sign in")
		return nil
	}
	fmt.Printf("Email verified, signed in as %s\n", sess.Identity.Username)
	return nil
}

func whoami(ctx context.Context, cl *client.Client) error {
	ident, err := cl.Auth.FetchIdentity(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s <%s>\nrole: %s\n", ident.Username, ident.Email, ident.Role)
	if ident.DanceType != "" {
		fmt.Printf("dance type: %s\n", ident.DanceType)
	}
	return nil
}

func week(ctx context.Context, cl *client.Client, args []string) error {
	date := time.Now()
	if len(args) > 0 {
		d, err := time.Parse(dateLayout, args[0])
		if err != nil {
			return fmt.Errorf("date must look like %s", dateLayout)
		}
		date = d
	}
	list, err := cl.Courses.Week(ctx, date)
	if err != nil {
		return err
	}
	return printView(cl.Booking.Track(ctx, list))
}

func mutate(ctx context.Context, cl *client.Client, command string, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: clubctl %s <courseId>", command)
	}
	v, err := cl.Booking.LoadView(ctx)
	if err != nil {
		return err
	}
	defer v.Close()

	if command == "book" {
		err = cl.Booking.RequestBooking(ctx, v, args[0])
	} else {
		err = cl.Booking.RequestCancellation(ctx, v, args[0])
	}
	if err != nil {
		return err
	}
	return printCourse(v, args[0])
}

func status(ctx context.Context, cl *client.Client, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: clubctl status <courseId>...")
	}
	r, err := booking.NewReconciler(cl.Courses, booking.WithLogger(cl.Log), booking.WithMetrics(cl.Metrics))
	if err != nil {
		return err
	}
	statuses := r.FetchStatuses(ctx, args)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, id := range args {
		if s, ok := statuses[id]; ok {
			fmt.Fprintf(w, "%s\t%s\n", id, s)
			delete(statuses, id)
		}
	}
	return w.Flush()
}

// watch keeps a view reconciled until interrupted, serving metrics if configured
func watch(ctx context.Context, cl *client.Client, c config.Config) error {
	v, err := cl.Booking.LoadView(ctx)
	if err != nil {
		return err
	}
	defer v.Close()
	if err := printView(v); err != nil {
		return err
	}

	if addr := c.GetMetricsAddr(); addr != "" {
		srv := &http.Server{Addr: addr, Handler: cl.Metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go listenAndServe(srv)
		defer shutdown(srv)
	}

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := cl.Booking.Reconcile(ctx, v); err != nil {
				log.Printf("Reconcile failed: %s\n", describe(err))
				continue
			}
			if err := printView(v); err != nil {
				return err
			}
		}
	}
}

func printView(v *booking.View) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCOURSE\tWHEN\tSEATS\tSTATUS")
	for _, s := range v.Courses() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s\n", s.Course.ID, s.Course.Name, when(s.Course), s.Booked, s.Capacity, s.Status)
	}
	return w.Flush()
}

func printCourse(v *booking.View, id string) error {
	s, ok := v.Course(id)
	if !ok {
		return clienterrors.ErrUnknownCourse
	}
	fmt.Printf("%s: %s (%d/%d seats)\n", s.Course.Name, s.Status, s.Booked, s.Capacity)
	return nil
}

func when(c courses.Course) string {
	day := c.CourseDate
	if day == "" {
		day = c.Weekday
	}
	return day + " " + c.TimeSlot
}

// describe turns the client's typed errors into something to show a person
func describe(err error) string {
	var (
		unverified *clienterrors.UnverifiedEmailError
		authFailed *clienterrors.AuthenticationError
		expired    *clienterrors.AuthorizationExpiredError
		full       *clienterrors.CapacityExceededError
		invalid    *clienterrors.ValidationError
	)
	switch {
	case errors.As(err, &unverified):
		return fmt.Sprintf("email %s is not verified, run: clubctl verify %s <code>", unverified.Email, unverified.UserID)
	case errors.As(err, &authFailed):
		return "wrong username or password"
	case errors.As(err, &expired):
		return "your session expired, please sign in again"
	case errors.As(err, &full):
		return fmt.Sprintf("course is full (%d/%d)", full.Booked, full.Capacity)
	case errors.As(err, &invalid):
		return invalid.Error()
	case errors.Is(err, clienterrors.ErrNotAuthenticated):
		return "not signed in, run: clubctl login <username>"
	}
	return err.Error()
}

func listenAndServe(server *http.Server) {
	log.Printf("Metrics listening on %s\n", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Printf("server.ListenAndServe: %v\n", err)
	}
}

func shutdown(server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("server.Shutdown: %v\n", err)
	}
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage: clubctl [-env file] [-q] <command> [args]

commands:
  login <username> [password]   sign in (password defaults to $CLUB_PASSWORD)
  verify <userId> <code>        confirm an email address
  logout                        sign out everywhere
  whoami                        show the signed in account
  courses                       list every course with your booking status
  week [YYYY-MM-DD]             list the courses of a week
  book <courseId>               book a seat
  cancel <courseId>             cancel a booking
  status <courseId>...          look up booking statuses
  watch                         keep the course list reconciled`)
}
